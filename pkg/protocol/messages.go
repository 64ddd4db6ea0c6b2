package protocol

import "encoding/json"

// Status is the status block included in every portal reply.
type Status struct {
	StatusCode   int    `json:"statusCode"`
	ErrorType    int    `json:"errorType"`
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// OK returns true if the status block does not report an error.
func (s Status) OK() bool {
	return s.StatusCode == 0 && s.ErrorType == 0 && s.ErrorCode == 0
}

// TemperatureUnit tags temperature samples in vehicle records.
type TemperatureUnit int

const (
	UnitCelsius    TemperatureUnit = 0
	UnitFahrenheit TemperatureUnit = 1
)

func (u TemperatureUnit) String() string {
	switch u {
	case UnitCelsius:
		return "C"
	case UnitFahrenheit:
		return "F"
	}
	return "?"
}

// Temperature values are strings on the wire; the portal uses "LOW" and "HIGH" at the ends of the
// supported range.
type Temperature struct {
	Value string          `json:"value"`
	Unit  TemperatureUnit `json:"unit"`
}

type Image struct {
	ImageName string `json:"imageName"`
	ImagePath string `json:"imagePath"`
	ImageType string `json:"imageType"`
}

// VehicleSummary describes one vehicle owned by the account. The VehicleKey is the capability key
// used to address the vehicle within the session that returned it.
type VehicleSummary struct {
	VIN               string `json:"vin"`
	VehicleKey        string `json:"vehicleKey,omitempty"`
	VehicleIdentifier string `json:"vehicleIdentifier,omitempty"`
	ModelName         string `json:"modelName,omitempty"`
	ModelYear         string `json:"modelYear,omitempty"`
	NickName          string `json:"nickName,omitempty"`
	Generation        int    `json:"generation,omitempty"`
	ExtColorCode      string `json:"extColorCode,omitempty"`
	Trim              string `json:"trim,omitempty"`
	ImagePath         *Image `json:"imagePath,omitempty"`
	EnrollmentStatus  int    `json:"enrollmentStatus,omitempty"`
	FuelType          int    `json:"fuelType,omitempty"`
	ColorName         string `json:"colorName,omitempty"`
	Mileage           string `json:"mileage,omitempty"`
	LicensePlate      string `json:"licensePlate,omitempty"`
}

// Redacted returns a copy of s without the capability key, suitable for display.
func (s VehicleSummary) Redacted() VehicleSummary {
	s.VehicleKey = ""
	return s
}

type LoginResponse struct {
	Status  Status `json:"status"`
	Payload *struct {
		VehicleSummary []VehicleSummary `json:"vehicleSummary"`
	} `json:"payload"`
}

type VehicleListResponse struct {
	Status  Status `json:"status"`
	Payload *struct {
		VehicleSummary []VehicleSummary `json:"vehicleSummary"`
	} `json:"payload"`
}

// ActionResponse is the reply to remotevehicledata requests. Mutating actions carry the
// transaction id in Header.
type ActionResponse struct {
	Status Status `json:"status"`
	Header *struct {
		XID string `json:"xid"`
	} `json:"header"`
	Payload json.RawMessage `json:"payload"`
}

// TransactionStatus is the payload of an ACTION_GET_TRANSACTION_STATUS reply.
type TransactionStatus struct {
	RemoteStatus *int `json:"remoteStatus"`
}

// RemoteStatusNotExecuting is the remoteStatus value reported once the vehicle is no longer
// executing the transaction.
const RemoteStatusNotExecuting = 0

type VehicleInfoResponse struct {
	Status  Status `json:"status"`
	Payload *struct {
		VehicleInfoList []VehicleInfo `json:"vehicleInfoList"`
	} `json:"payload"`
}

// VehicleInfo is one entry of the vehicle-info record. Only the fields the client interprets are
// decoded; Raw holds the complete entry as received.
type VehicleInfo struct {
	VinKey          string          `json:"vinKey"`
	VehicleConfig   VehicleConfig   `json:"vehicleConfig"`
	LastVehicleInfo LastVehicleInfo `json:"lastVehicleInfo"`

	Raw json.RawMessage `json:"-"`
}

func (v *VehicleInfo) UnmarshalJSON(data []byte) error {
	type plain VehicleInfo
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*v = VehicleInfo(p)
	v.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// VIN returns the vehicle identification number of the entry.
func (v *VehicleInfo) VIN() string {
	return v.VehicleConfig.VehicleDetail.Vehicle.VIN
}

type VehicleConfig struct {
	VehicleDetail struct {
		Vehicle struct {
			VIN  string `json:"vin"`
			Trim struct {
				ModelYear string `json:"modelYear"`
				ModelName string `json:"modelName"`
				TrimName  string `json:"trimName"`
			} `json:"trim"`
			Mileage  string `json:"mileage"`
			FuelType int    `json:"fuelType"`
		} `json:"vehicle"`
	} `json:"vehicleDetail"`
}

type LastVehicleInfo struct {
	VehicleNickName  string           `json:"vehicleNickName"`
	VehicleStatusRpt VehicleStatusRpt `json:"vehicleStatusRpt"`
	Weather          struct {
		OutsideTemp []Temperature `json:"outsideTemp"`
	} `json:"weather"`
}

type VehicleStatusRpt struct {
	StatusType string `json:"statusType"`
	ReportDate struct {
		UTC    string `json:"utc"`
		Offset int    `json:"offset"`
	} `json:"reportDate"`
	VehicleStatus VehicleStatus `json:"vehicleStatus"`
}

type VehicleStatus struct {
	Climate struct {
		AirCtrl bool        `json:"airCtrl"`
		Defrost bool        `json:"defrost"`
		AirTemp Temperature `json:"airTemp"`
	} `json:"climate"`
	Engine     bool `json:"engine"`
	DoorLock   bool `json:"doorLock"`
	DoorStatus struct {
		FrontLeft  int `json:"frontLeft"`
		FrontRight int `json:"frontRight"`
		BackLeft   int `json:"backLeft"`
		BackRight  int `json:"backRight"`
		Trunk      int `json:"trunk"`
		Hood       int `json:"hood"`
	} `json:"doorStatus"`
	BatteryStatus struct {
		StateOfCharge int `json:"stateOfCharge"`
		Warning       int `json:"warning"`
	} `json:"batteryStatus"`
	FuelLevel       int `json:"fuelLevel"`
	DistanceToEmpty struct {
		Value float64 `json:"value"`
		Unit  int     `json:"unit"`
	} `json:"distanceToEmpty"`
}

// MarshalJSON writes the entry as received when it was decoded from the portal.
func (v VehicleInfo) MarshalJSON() ([]byte, error) {
	if len(v.Raw) > 0 {
		return v.Raw, nil
	}
	type plain VehicleInfo
	return json.Marshal(plain(v))
}
