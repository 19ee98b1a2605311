package reading

import (
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidCoordinates = errors.New("invalid latitude/longitude")
var ErrBadPayload = errors.New("malformed payload")

// Candidate is a reading exactly as reported by a device, before any
// validation. Latitude/Longitude are pointers so that a missing field is
// distinguishable from a genuine zero coordinate. Unknown payload fields
// are ignored on decode.
type Candidate struct {
	DeviceId  *string  `json:"deviceId"`
	Latitude  *float64 `json:"latitude" validate:"required,finite"`
	Longitude *float64 `json:"longitude" validate:"required,finite"`
	Timestamp *string  `json:"timestamp"`
}

// Reading is a validated candidate, ready for the store.
type Reading struct {
	DeviceId  *string
	Latitude  float64
	Longitude float64
	Timestamp *string
}

// StoredReading is a Reading plus the fields assigned by the store.
// Records are immutable once persisted.
type StoredReading struct {
	Id         string    `json:"id"`
	DeviceId   *string   `json:"deviceId"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Timestamp  *string   `json:"timestamp"`
	ReceivedAt time.Time `json:"receivedAt"`
}

var vld = validator.New()

func init() {
	err := vld.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	if err != nil {
		panic(err)
	}
}

// ParseCandidate decodes a raw device payload. A payload whose latitude or
// longitude is present but not numeric is ErrInvalidCoordinates, any other
// undecodable payload is ErrBadPayload.
func ParseCandidate(payload []byte) (*Candidate, error) {
	c := &Candidate{}
	err := json.Unmarshal(payload, c)
	if err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && (typeErr.Field == "latitude" || typeErr.Field == "longitude") {
			return nil, ErrInvalidCoordinates
		}
		return nil, ErrBadPayload
	}
	return c, nil
}

// Validate checks well-formedness only. Pure, no I/O. Missing deviceId or
// timestamp is fine, missing or non-finite coordinates are not.
func Validate(c *Candidate) error {
	if err := vld.Struct(c); err != nil {
		return ErrInvalidCoordinates
	}
	return nil
}

// Reading converts a validated candidate. Must only be called after
// Validate has passed. An empty timestamp string is normalized to absent.
func (c *Candidate) Reading() Reading {
	r := Reading{DeviceId: c.DeviceId, Latitude: *c.Latitude, Longitude: *c.Longitude}
	if c.Timestamp != nil && *c.Timestamp != "" {
		r.Timestamp = c.Timestamp
	}
	return r
}

// DeviceLabel is the device id for logs, never for storage.
func (r *Reading) DeviceLabel() string {
	if r.DeviceId == nil || *r.DeviceId == "" {
		return "unknown"
	}
	return *r.DeviceId
}
