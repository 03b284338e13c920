package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/dkeye/Roulette/internal/core"
)

var (
	ErrMalformed   = errors.New("malformed message")
	ErrUnknownType = errors.New("unknown message type")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// present: a raw JSON value that exists and is not null.
	_ = v.RegisterValidation("present", func(fl validator.FieldLevel) bool {
		f := fl.Field()
		if f.Kind() != reflect.Slice {
			return false
		}
		raw := bytes.TrimSpace(f.Bytes())
		return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
	})
	return v
}

// Decode parses one client message and validates its shape.
func Decode(data []byte) (Inbound, error) {
	var env struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var msg Inbound
	switch env.Type {
	case TypeJoin:
		msg = &Join{}
	case TypeLeave:
		msg = &Leave{}
	case TypeOffer:
		msg = &Offer{}
	case TypeAnswer:
		msg = &Answer{}
	case TypeICECandidate:
		msg = &ICECandidate{}
	case TypePing:
		msg = &Ping{}
	case TypeWhoAmI:
		msg = &WhoAmIRequest{}
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	if err := validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	return msg, nil
}

func Encode(v any) (core.Frame, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}
