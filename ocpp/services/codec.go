// Package services adapts the version-specific OCPP-J message shapes
// (ocpp/v16, ocpp/v201) to the engine's version-agnostic Codec and
// IncomingRequestService interfaces (spec §9 "polymorphic request/
// response services across OCPP versions").
package services

import (
	"encoding/json"

	"github.com/ocppsim/charging-station-simulator/ocpp/v16"
	"github.com/ocppsim/charging-station-simulator/ocpp/v201"
)

// V16Codec implements engine.Codec over ocpp/v16's marshal/parse functions.
type V16Codec struct{}

func (V16Codec) MarshalCall(id, action string, payload interface{}) ([]byte, error) {
	return v16.MarshalCall(id, action, payload)
}
func (V16Codec) MarshalCallResult(id string, payload interface{}) ([]byte, error) {
	return v16.MarshalCallResult(id, payload)
}
func (V16Codec) MarshalCallError(id, code, desc string, details interface{}) ([]byte, error) {
	return v16.MarshalCallError(id, code, desc, details)
}
func (V16Codec) ParseMessage(data []byte) (int, string, json.RawMessage, string, error) {
	return v16.ParseMessage(data)
}

// V201Codec implements engine.Codec over ocpp/v201's marshal/parse functions.
type V201Codec struct{}

func (V201Codec) MarshalCall(id, action string, payload interface{}) ([]byte, error) {
	return v201.MarshalCall(id, action, payload)
}
func (V201Codec) MarshalCallResult(id string, payload interface{}) ([]byte, error) {
	return v201.MarshalCallResult(id, payload)
}
func (V201Codec) MarshalCallError(id, code, desc string, details interface{}) ([]byte, error) {
	return v201.MarshalCallError(id, code, desc, details)
}
func (V201Codec) ParseMessage(data []byte) (int, string, json.RawMessage, string, error) {
	return v201.ParseMessage(data)
}
