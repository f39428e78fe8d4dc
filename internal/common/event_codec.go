package common

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeError marks a payload that can never be processed; consumers drop it
type DecodeError struct {
	Event string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Event, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err (or anything it wraps) is a DecodeError
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

type selfValidator interface {
	Validate() error
}

func EncodeEvent(event any) ([]byte, error) {
	return json.Marshal(event)
}

// DecodeEvent strictly decodes and validates one event; every failure is a *DecodeError
func DecodeEvent[T any](data []byte) (*T, error) {
	event := new(T)
	name := fmt.Sprintf("%T", *event)

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(event); err != nil {
		return nil, &DecodeError{Event: name, Err: err}
	}
	if err := validate.Struct(event); err != nil {
		return nil, &DecodeError{Event: name, Err: err}
	}
	if v, ok := any(event).(selfValidator); ok {
		if err := v.Validate(); err != nil {
			return nil, &DecodeError{Event: name, Err: err}
		}
	}
	return event, nil
}
