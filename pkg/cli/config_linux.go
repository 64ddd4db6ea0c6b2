package cli

import "flag"

func (c *Config) registerFlagsOsSpecific(fs *flag.FlagSet) {
	fs.StringVar(&c.Backend.KeyCtlScope, "keyring-keyctl-scope", "user", "Kernel keyring `scope` for the keyctl backend (user|session|process|thread).")
}
