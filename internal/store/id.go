package store

import (
	hashids "github.com/speps/go-hashids/v2"
)

var hid *hashids.HashID

func init() {
	hd := hashids.NewData()
	hd.Salt = "safetracker"
	hd.MinLength = 8
	h, err := hashids.NewWithData(hd)
	if err != nil {
		panic(err)
	}
	hid = h
}

// EncodeID turns a backend row id into the opaque public reading id.
func EncodeID(n int64) string {
	s, err := hid.EncodeInt64([]int64{n})
	if err != nil {
		panic(err)
	}
	return s
}
