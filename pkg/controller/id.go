// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package controller

import (
	"hash/fnv"

	"github.com/google/uuid"
)

// HashID derives a transmitter id from a name with 32-bit FNV-1, the hash
// receivers were paired with when the id was configured as text.
func HashID(name string) uint32 {
	h := fnv.New32()
	h.Write([]byte(name))
	return h.Sum32()
}

// NewDeviceUUID returns a fresh random identity for a controller that
// derives its id from a persistent uuid instead of its name
func NewDeviceUUID() string {
	return uuid.NewString()
}

// ResolveID picks the transmitter id: the forced id when set, the hash of
// the persisted device uuid when useUUID is set, the hash of name otherwise.
// A uuid is generated into st when one is needed and missing.
func ResolveID(forced *uint32, name string, useUUID bool, st *State) uint32 {
	if forced != nil {
		return *forced
	}
	if useUUID {
		if st.DeviceUUID == "" {
			st.DeviceUUID = NewDeviceUUID()
		}
		return HashID(st.DeviceUUID)
	}
	return HashID(name)
}
