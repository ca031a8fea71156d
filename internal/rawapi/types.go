package rawapi

// RawRequest is the body of POST /v1/raw. Data is the hex encoded command
// byte followed by the request data.
type RawRequest struct {
	NetFn uint8  `json:"netfn"`
	LUN   uint8  `json:"lun"`
	Data  string `json:"data"`
}

// RawResponse carries the completion code and the hex encoded response
// data after it.
type RawResponse struct {
	CompletionCode uint8  `json:"completion_code"`
	Message        string `json:"message"`
	Data           string `json:"data"`
}

// DeviceInfo is the body of GET /v1/device.
type DeviceInfo struct {
	DeviceID           uint8  `json:"device_id"`
	DeviceRevision     uint8  `json:"device_revision"`
	Firmware           string `json:"firmware"`
	IPMIVersion        string `json:"ipmi_version"`
	ManufacturerID     uint32 `json:"manufacturer_id"`
	ProductID          uint16 `json:"product_id"`
	ProvidesDeviceSDRs bool   `json:"provides_device_sdrs"`
	GUID               string `json:"guid,omitempty"`
}

// ChassisStatus is the body of GET /v1/chassis.
type ChassisStatus struct {
	PowerOn       bool   `json:"power_on"`
	PowerFault    bool   `json:"power_fault"`
	Intrusion     bool   `json:"intrusion"`
	RestorePolicy string `json:"restore_policy"`
}

// ChassisRequest is the body of POST /v1/chassis.
type ChassisRequest struct {
	Action string `json:"action"` // on, off, cycle, reset, diag, soft
}

// APIError is the error body of every endpoint.
type APIError struct {
	Error APIErrorBody `json:"error"`
}

// APIErrorBody describes one error.
type APIErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
