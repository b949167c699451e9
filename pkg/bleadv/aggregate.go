// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bleadv

// Aggregate sends every command through all member codecs of a family, for
// receivers whose exact variant is unknown.
type Aggregate struct {
	family  string
	members []Codec
}

// NewAggregate creates an empty "<family> - All" codec
func NewAggregate(family string) *Aggregate {
	return &Aggregate{family: family}
}

// Add appends a member codec
func (a *Aggregate) Add(c Codec) {
	a.members = append(a.members, c)
}

// Members returns the member codecs in registration order
func (a *Aggregate) Members() []Codec {
	return append([]Codec(nil), a.members...)
}

func (a *Aggregate) ID() string      { return a.family + " - " + VariantAll }
func (a *Aggregate) Family() string  { return a.family }
func (a *Aggregate) Variant() string { return VariantAll }

// BLEParams is undefined for an aggregate
func (a *Aggregate) BLEParams() (uint8, uint8) { return 0, 0 }

// IsSupported reports whether any member supports cmd
func (a *Aggregate) IsSupported(cmd Command) bool {
	for _, m := range a.members {
		if m.IsSupported(cmd) {
			return true
		}
	}
	return false
}

// Translate returns the translation of the first supporting member
func (a *Aggregate) Translate(cmd Command, params ControllerParams) []Command {
	for _, m := range a.members {
		if m.IsSupported(cmd) {
			return m.Translate(cmd, params)
		}
	}
	return nil
}

// Encode concatenates the member outputs in registration order. Each member
// starts from the same counter; params.TxCount ends at the highest value
// reached by any of them.
func (a *Aggregate) Encode(cmd Command, params *ControllerParams) []*WireParam {
	var packets []*WireParam
	maxTx := params.TxCount
	for _, m := range a.members {
		p := *params
		packets = append(packets, m.Encode(cmd, &p)...)
		maxTx = max(maxTx, p.TxCount)
	}
	params.TxCount = maxTx
	return packets
}

// Decode is never attempted on an aggregate
func (a *Aggregate) Decode(*WireParam) (Command, ControllerParams, error) {
	return Command{}, ControllerParams{}, ErrNotSupported
}
