package envelope

import (
	"encoding/json"
	"fmt"
)

const (
	RequestEnvelopeName    = "Microsoft.ApplicationInsights.Request"
	DependencyEnvelopeName = "Microsoft.ApplicationInsights.RemoteDependency"

	RequestBaseType    = "RequestData"
	DependencyBaseType = "RemoteDependencyData"

	schemaVersion = 1
)

// Envelope is a single telemetry item as accepted by the ingestion endpoint.
type Envelope struct {
	Version            int               `json:"ver"`
	Name               string            `json:"name"`
	Time               string            `json:"time"`
	InstrumentationKey string            `json:"iKey"`
	Tags               map[string]string `json:"tags"`
	Data               Data              `json:"data"`
}

type Data struct {
	BaseType string  `json:"baseType"`
	BaseData Payload `json:"baseData"`
}

func (d *Data) UnmarshalJSON(b []byte) error {
	var raw struct {
		BaseType string          `json:"baseType"`
		BaseData json.RawMessage `json:"baseData"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	switch raw.BaseType {
	case RequestBaseType:
		d.BaseData = &RequestData{}
	case DependencyBaseType:
		d.BaseData = &RemoteDependencyData{}
	default:
		return fmt.Errorf("unknown base type %q", raw.BaseType)
	}

	d.BaseType = raw.BaseType
	return json.Unmarshal(raw.BaseData, d.BaseData)
}

// Payload is implemented by RequestData and RemoteDependencyData only.
type Payload interface {
	baseType() string
}

type RequestData struct {
	Version      int                `json:"ver"`
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Duration     string             `json:"duration"`
	Success      bool               `json:"success"`
	ResponseCode string             `json:"responseCode"`
	Source       string             `json:"source,omitempty"`
	URL          string             `json:"url,omitempty"`
	Properties   map[string]string  `json:"properties"`
	Measurements map[string]float64 `json:"measurements"`
}

func (*RequestData) baseType() string { return RequestBaseType }

type RemoteDependencyData struct {
	Version      int                `json:"ver"`
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Duration     string             `json:"duration"`
	Success      bool               `json:"success"`
	ResultCode   string             `json:"resultCode"`
	Data         string             `json:"data,omitempty"`
	Target       string             `json:"target,omitempty"`
	Type         string             `json:"type,omitempty"`
	Properties   map[string]string  `json:"properties"`
	Measurements map[string]float64 `json:"measurements"`
}

func (*RemoteDependencyData) baseType() string { return DependencyBaseType }
