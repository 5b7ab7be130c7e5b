package wire

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/stackvm/vm"
)

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes any wire message to CBOR bytes.
func Marshal(msg any) ([]byte, error) {
	data, err := cborEncMode.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal %T: %w", msg, err)
	}
	return data, nil
}

// Unmarshal deserializes CBOR bytes into msg, which must be a pointer.
func Unmarshal(data []byte, msg any) error {
	if err := cbor.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("wire: unmarshal %T: %w", msg, err)
	}
	return nil
}

// MarshalRunRequest serializes a RunRequest to CBOR bytes.
func MarshalRunRequest(r *RunRequest) ([]byte, error) {
	return Marshal(r)
}

// UnmarshalRunRequest deserializes a RunRequest from CBOR bytes.
func UnmarshalRunRequest(data []byte) (*RunRequest, error) {
	var r RunRequest
	if err := Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// MarshalRunResponse serializes a RunResponse to CBOR bytes.
func MarshalRunResponse(r *RunResponse) ([]byte, error) {
	return Marshal(r)
}

// UnmarshalRunResponse deserializes a RunResponse from CBOR bytes.
func UnmarshalRunResponse(data []byte) (*RunResponse, error) {
	var r RunResponse
	if err := Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Fault kinds for run aborts that are not vm faults.
const (
	KindStepLimit = "step_limit"
	KindCanceled  = "canceled"
	KindInternal  = "internal"
)

// FaultInfoFrom converts an assemble or run error into its wire form.
// It returns nil for a nil error.
func FaultInfoFrom(err error) *FaultInfo {
	if err == nil {
		return nil
	}

	var f *vm.Fault
	if errors.As(err, &f) {
		info := &FaultInfo{
			Kind:    f.Kind.String(),
			Message: f.Msg,
			PC:      f.PC,
			Line:    f.Line,
		}
		if f.Err != nil {
			info.Message += ": " + f.Err.Error()
		}
		return info
	}

	kind := KindInternal
	switch {
	case errors.Is(err, vm.ErrStepLimit):
		kind = KindStepLimit
	case isContextErr(err):
		kind = KindCanceled
	}
	return &FaultInfo{Kind: kind, Message: err.Error(), PC: -1}
}

// DiagnosticsFrom converts vm.Validate results into diagnostics.
func DiagnosticsFrom(errs []error) []Diagnostic {
	diags := make([]Diagnostic, 0, len(errs))
	for _, err := range errs {
		d := Diagnostic{Message: err.Error()}
		var f *vm.Fault
		if errors.As(err, &f) {
			d.Line = f.Line
			d.Message = f.Msg
			if f.Err != nil {
				d.Message += ": " + f.Err.Error()
			}
		}
		diags = append(diags, d)
	}
	return diags
}
