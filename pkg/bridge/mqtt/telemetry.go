package mqtt

import (
	"fmt"

	"github.com/golang/protobuf/jsonpb"
	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/motorlink/pkg/l0/comm"
)

// Telemetry field names.
const (
	FieldVoltage        = "voltage"
	FieldTemperature    = "temperature"
	FieldCurrentQ       = "current_q"
	FieldCurrentD       = "current_d"
	FieldERPM           = "erpm"
	FieldCommandCurrent = "command_current"
	FieldState          = "state"
	FieldFault          = "fault"
)

func numberValue(v float64) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: v}}
}

// TelemetryStruct converts telemetry into a generic protobuf Struct.
func TelemetryStruct(t *comm.Telemetry) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldVoltage:        numberValue(float64(t.Voltage)),
		FieldTemperature:    numberValue(float64(t.Temperature)),
		FieldCurrentQ:       numberValue(float64(t.CurrentQ)),
		FieldCurrentD:       numberValue(float64(t.CurrentD)),
		FieldERPM:           numberValue(float64(t.ERPM)),
		FieldCommandCurrent: numberValue(float64(t.CommandCurrent)),
		FieldState:          numberValue(float64(t.State)),
		FieldFault:          numberValue(float64(t.Fault)),
	}}
}

// TelemetryFromStruct converts Struct back to telemetry.
func TelemetryFromStruct(s *structpb.Struct) (*comm.Telemetry, error) {
	number := func(name string) (float64, error) {
		val, ok := s.GetFields()[name]
		if !ok {
			return 0, fmt.Errorf("telemetry field %q missing", name)
		}
		num, ok := val.GetKind().(*structpb.Value_NumberValue)
		if !ok {
			return 0, fmt.Errorf("telemetry field %q is not a number", name)
		}
		return num.NumberValue, nil
	}
	var t comm.Telemetry
	floats := []struct {
		name string
		ptr  *float32
	}{
		{FieldVoltage, &t.Voltage},
		{FieldTemperature, &t.Temperature},
		{FieldCurrentQ, &t.CurrentQ},
		{FieldCurrentD, &t.CurrentD},
		{FieldERPM, &t.ERPM},
		{FieldCommandCurrent, &t.CommandCurrent},
	}
	for _, f := range floats {
		v, err := number(f.name)
		if err != nil {
			return nil, err
		}
		*f.ptr = float32(v)
	}
	for _, f := range []struct {
		name string
		ptr  *uint16
	}{{FieldState, &t.State}, {FieldFault, &t.Fault}} {
		v, err := number(f.name)
		if err != nil {
			return nil, err
		}
		*f.ptr = uint16(v)
	}
	return &t, nil
}

// EncodeTelemetry encodes telemetry as a protobuf Struct message.
func EncodeTelemetry(t *comm.Telemetry) ([]byte, error) {
	return proto.Marshal(TelemetryStruct(t))
}

// DecodeTelemetry decodes a message from EncodeTelemetry.
func DecodeTelemetry(data []byte) (*structpb.Struct, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// TelemetryJSON formats telemetry as the JSON mapping of Struct.
func TelemetryJSON(t *comm.Telemetry) (string, error) {
	return (&jsonpb.Marshaler{}).MarshalToString(TelemetryStruct(t))
}
