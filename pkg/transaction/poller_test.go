package transaction_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/huttotw/kia-connect/mocks"
	"github.com/huttotw/kia-connect/pkg/protocol"
	"github.com/huttotw/kia-connect/pkg/transaction"
)

const testVIN = "KNDJ23AU1N7000001"

var fastPolicy = transaction.Policy{
	MaxAttempts:  8,
	InitialDelay: 4 * time.Millisecond,
	Factor:       0.8,
}

var _ = Describe("Policy", func() {
	It("shrinks delays between attempts", func() {
		delays := transaction.DefaultPolicy.Delays()
		Expect(delays).To(HaveLen(8))
		Expect(delays[0]).To(Equal(transaction.DefaultPolicy.InitialDelay))
		for i := 1; i < len(delays); i++ {
			Expect(delays[i]).To(BeNumerically("<", delays[i-1]))
		}
	})

	It("gives up within a minute by default", func() {
		budget := transaction.DefaultPolicy.Budget()
		Expect(budget).To(BeNumerically(">", 20*time.Second))
		Expect(budget).To(BeNumerically("<", time.Minute))
	})

	DescribeTable("rejects unbounded schedules",
		func(p transaction.Policy) {
			Expect(p.Validate()).ToNot(Succeed())
			_, err := transaction.NewPoller(nil, p)
			Expect(err).To(HaveOccurred())
		},
		Entry("no attempts", transaction.Policy{MaxAttempts: 0, InitialDelay: time.Second, Factor: 0.8}),
		Entry("no delay", transaction.Policy{MaxAttempts: 8, InitialDelay: 0, Factor: 0.8}),
		Entry("growing delays", transaction.Policy{MaxAttempts: 8, InitialDelay: time.Second, Factor: 1.5}),
		Entry("constant delays", transaction.Policy{MaxAttempts: 8, InitialDelay: time.Second, Factor: 1}),
	)
})

var _ = Describe("Poller", func() {
	var (
		ctrl    *gomock.Controller
		checker *mocks.StatusChecker
		poller  *transaction.Poller
		txn     transaction.Transaction
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		checker = mocks.NewStatusChecker(ctrl)
		var err error
		poller, err = transaction.NewPoller(checker, fastPolicy)
		Expect(err).ToNot(HaveOccurred())
		txn = transaction.Transaction{ID: "xid-1", VIN: testVIN, IssuedAt: time.Now()}
	})

	It("stops as soon as the transaction completes", func() {
		gomock.InOrder(
			checker.EXPECT().TransactionStatus(gomock.Any(), testVIN, "xid-1").Return(transaction.StillPending, nil),
			checker.EXPECT().TransactionStatus(gomock.Any(), testVIN, "xid-1").Return(transaction.StillPending, nil),
			checker.EXPECT().TransactionStatus(gomock.Any(), testVIN, "xid-1").Return(transaction.Completed, nil),
		)
		outcome, err := poller.Await(context.Background(), txn)
		Expect(err).ToNot(HaveOccurred())
		Expect(outcome).To(Equal(transaction.Completed))
	})

	It("reports an unresolved outcome after the attempt budget", func() {
		checker.EXPECT().TransactionStatus(gomock.Any(), testVIN, "xid-1").Return(transaction.StillPending, nil).Times(8)
		outcome, err := poller.Await(context.Background(), txn)
		Expect(outcome).To(Equal(transaction.StillPending))
		Expect(protocol.IsUnresolved(err)).To(BeTrue())
		Expect(protocol.MayHaveSucceeded(err)).To(BeTrue())

		var unresolved *protocol.UnresolvedOutcomeError
		Expect(errors.As(err, &unresolved)).To(BeTrue())
		Expect(unresolved.Attempts).To(Equal(8))
		Expect(unresolved.TransactionID).To(Equal("xid-1"))
	})

	It("counts failed status checks against the budget", func() {
		failure := &protocol.TransportError{Op: "GET remotevehicledata", Err: errors.New("connection reset")}
		checker.EXPECT().TransactionStatus(gomock.Any(), testVIN, "xid-1").Return(transaction.StillPending, failure).Times(8)
		_, err := poller.Await(context.Background(), txn)
		Expect(protocol.IsUnresolved(err)).To(BeTrue())

		var transportErr *protocol.TransportError
		Expect(errors.As(err, &transportErr)).To(BeTrue())
	})

	It("recovers from a transient failure", func() {
		gomock.InOrder(
			checker.EXPECT().TransactionStatus(gomock.Any(), testVIN, "xid-1").Return(transaction.StillPending, &protocol.ProtocolError{Err: protocol.ErrBadResponse}),
			checker.EXPECT().TransactionStatus(gomock.Any(), testVIN, "xid-1").Return(transaction.Completed, nil),
		)
		outcome, err := poller.Await(context.Background(), txn)
		Expect(err).ToNot(HaveOccurred())
		Expect(outcome).To(Equal(transaction.Completed))
	})

	It("sends no queries once cancelled before the first poll", func() {
		slow, err := transaction.NewPoller(checker, transaction.Policy{MaxAttempts: 8, InitialDelay: time.Hour, Factor: 0.8})
		Expect(err).ToNot(HaveOccurred())
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(10*time.Millisecond, cancel)

		_, err = slow.Await(ctx, txn)
		Expect(errors.Is(err, transaction.ErrCancelled)).To(BeTrue())
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(protocol.IsUnresolved(err)).To(BeFalse())
	})

	It("stops polling when cancelled between attempts", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		checker.EXPECT().TransactionStatus(gomock.Any(), testVIN, "xid-1").DoAndReturn(
			func(context.Context, string, string) (transaction.Outcome, error) {
				cancel()
				return transaction.StillPending, nil
			}).Times(1)

		outcome, err := poller.Await(ctx, txn)
		Expect(outcome).To(Equal(transaction.StillPending))
		Expect(errors.Is(err, transaction.ErrCancelled)).To(BeTrue())
	})
})
