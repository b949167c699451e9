// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bleadv

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ErrUnknownCodec is returned when a codec id is not registered
var ErrUnknownCodec = errors.New("unknown codec")

// Registry owns every codec instance, keyed by id. Concrete codecs are
// grouped into one Aggregate per family.
type Registry struct {
	seeds      SeedSource
	codecs     []Codec
	byID       map[string]Codec
	aggregates map[string]*Aggregate
	families   []string
}

// NewRegistry creates an empty registry. Codecs built by the registry draw
// their seeds from seeds.
func NewRegistry(seeds SeedSource) *Registry {
	if seeds == nil {
		seeds = RandomSeeds
	}
	return &Registry{
		seeds:      seeds,
		byID:       make(map[string]Codec),
		aggregates: make(map[string]*Aggregate),
	}
}

// DefaultRegistry creates a registry holding the full codec catalog
func DefaultRegistry(seeds SeedSource) *Registry {
	r := NewRegistry(seeds)
	for _, c := range r.catalog() {
		// ids in the catalog are unique
		_ = r.Register(c)
	}
	return r
}

func (r *Registry) newCodec(family, variant string, adFlag, dataType uint8, header []byte, l layout) *codec {
	return &codec{
		family:   family,
		variant:  variant,
		adFlag:   adFlag,
		dataType: dataType,
		header:   header,
		seeds:    r.seeds,
		layout:   l,
	}
}

func (r *Registry) catalog() []Codec {
	v1Header := []byte{0x77, 0xF8}
	v1cHeader := []byte{0xF9, 0x08}
	v2Header := []byte{0xF0, 0x08}
	zhijiaHeader := []byte{0xF9, 0x08, 0x49}
	zhijiaV2Header := []byte{0x22, 0x9D}

	return []Codec{
		r.newCodec(FamilyFanLampPro, "v1a", 0x19, ADTypeComplete16BitIDs, v1Header, newFanLampV1(0x83, false, false, 0)),
		r.newCodec(FamilyFanLampPro, "v1b", 0x19, ADTypeComplete16BitIDs, v1Header, newFanLampV1(0x83, false, true, 0)),
		r.newCodec(FamilyFanLampPro, "v2", 0x19, ADTypeServiceData16, v2Header, &fanlampV2{deviceType: 0x0400}),
		r.newCodec(FamilyFanLampPro, "v3", 0x19, ADTypeServiceData16, v2Header, &fanlampV2{deviceType: 0x0400, withSign: true}),

		r.newCodec(FamilyLampSmartPro, "v1a", 0x19, ADTypeComplete16BitIDs, v1Header, newFanLampV1(0x81, true, false, 0)),
		r.newCodec(FamilyLampSmartPro, "v1b", 0x19, ADTypeComplete16BitIDs, v1Header, newFanLampV1(0x81, true, true, 0)),
		r.newCodec(FamilyLampSmartPro, "v1c", 0x19, ADTypeComplete16BitIDs, v1cHeader, newFanLampV1(0x81, true, true, 0x55)),
		r.newCodec(FamilyLampSmartPro, "v2", 0x02, ADTypeServiceData16, v2Header, &fanlampV2{deviceType: 0x0100}),
		r.newCodec(FamilyLampSmartPro, "v3", 0x02, ADTypeServiceData16, v2Header, &fanlampV2{deviceType: 0x0100, withSign: true}),

		r.newCodec(FamilyZhijia, "v0", 0x1A, ADTypeManufacturer, zhijiaHeader, zhijiaV0{}),
		r.newCodec(FamilyZhijia, "v1", 0x1A, ADTypeManufacturer, zhijiaHeader, zhijiaV1{}),
		r.newCodec(FamilyZhijia, "v2", 0x1A, ADTypeManufacturer, zhijiaV2Header, zhijiaV2{}),
	}
}

// Register adds c and appends it to its family aggregate, creating the
// aggregate first when the family is new.
func (r *Registry) Register(c Codec) error {
	if _, exists := r.byID[c.ID()]; exists {
		return fmt.Errorf("codec %q already registered", c.ID())
	}

	agg, ok := r.aggregates[c.Family()]
	if !ok {
		agg = NewAggregate(c.Family())
		r.aggregates[c.Family()] = agg
		r.families = append(r.families, c.Family())
		r.codecs = append(r.codecs, agg)
		r.byID[agg.ID()] = agg
	}
	agg.Add(c)

	r.codecs = append(r.codecs, c)
	r.byID[c.ID()] = c
	return nil
}

// Lookup returns the codec registered under id
func (r *Registry) Lookup(id string) (Codec, error) {
	c, ok := r.byID[id]
	if !ok {
		log.Error().Str("codec", id).Msg("no codec registered")
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, id)
	}
	return c, nil
}

// LookupVariant returns the codec of family with the given variant
func (r *Registry) LookupVariant(family, variant string) (Codec, error) {
	return r.Lookup(family + " - " + variant)
}

// IDs lists codec ids in registration order, restricted to family unless it is empty
func (r *Registry) IDs(family string) []string {
	var ids []string
	for _, c := range r.codecs {
		if family == "" || c.Family() == family {
			ids = append(ids, c.ID())
		}
	}
	return ids
}

// Families lists the registered families in registration order
func (r *Registry) Families() []string {
	return append([]string(nil), r.families...)
}

// Codecs returns every codec, aggregates included, in registration order
func (r *Registry) Codecs() []Codec {
	return append([]Codec(nil), r.codecs...)
}

// Identification is the outcome of a successful Identify
type Identification struct {
	Codec     Codec
	Command   Command
	Params    ControllerParams
	Raw       *WireParam
	Reencoded *WireParam
	NoDiff    bool // re-encoding reproduced the captured data bytes
}

type snippetController struct {
	Encoding string `yaml:"encoding"`
	Variant  string `yaml:"variant"`
	ForcedID string `yaml:"forced_id"`
	Index    uint8  `yaml:"index,omitempty"`
}

type snippet struct {
	Controllers []snippetController `yaml:"controllers"`
}

// ConfigSnippet renders the controller configuration that would drive the
// identified receiver.
func (id *Identification) ConfigSnippet() string {
	out, err := yaml.Marshal(snippet{Controllers: []snippetController{{
		Encoding: id.Codec.Family(),
		Variant:  id.Codec.Variant(),
		ForcedID: fmt.Sprintf("0x%X", id.Params.ID),
		Index:    id.Params.Index,
	}}})
	if err != nil {
		return ""
	}
	return string(out)
}

// Identify tries every concrete codec in registration order. Unless
// ignoreBLE is set, codecs whose flags and AD type differ from the capture
// are skipped. The first codec that decodes wins; its output is re-encoded
// to check that the codec reproduces the capture.
func (r *Registry) Identify(wp *WireParam, ignoreBLE bool) (*Identification, bool) {
	for _, c := range r.codecs {
		if _, isAggregate := c.(*Aggregate); isAggregate {
			continue
		}
		if !ignoreBLE {
			adFlag, dataType := c.BLEParams()
			if adFlag != wp.ADFlag() || dataType != wp.DataType() {
				continue
			}
		}

		cmd, params, err := c.Decode(wp)
		if err != nil {
			log.Trace().Str("codec", c.ID()).Err(err).Msg("decode rejected")
			continue
		}

		result := &Identification{Codec: c, Command: cmd, Params: params, Raw: wp.Clone()}

		result.Reencoded = reencode(c, cmd, params)
		if result.Reencoded != nil {
			result.NoDiff = result.Reencoded.DataEqual(wp)
		}

		event := log.Info()
		if !result.NoDiff {
			event = log.Warn()
		}
		event.Str("codec", c.ID()).
			Str("id", fmt.Sprintf("0x%X", params.ID)).
			Uint8("index", params.Index).
			Uint8("tx", params.TxCount).
			Str("opcode", fmt.Sprintf("0x%02X", cmd.Opcode)).
			Bool("no_diff", result.NoDiff).
			Msg(diffLabel(result.NoDiff))
		return result, true
	}

	log.Info().Str("raw", FormatHex(wp.Bytes())).Msg("unidentified packet")
	return nil, false
}

// reencode rebuilds the advertisement a decode came from. Built-in codecs
// lay out the decoded wire command with the decoded tx_count unchanged;
// other codecs go through Encode, which advances tx_count by one.
func reencode(c Codec, cmd Command, params ControllerParams) *WireParam {
	if lc, ok := c.(*codec); ok {
		return lc.encodeWire(cmd, params)
	}

	replay := Command{Kind: CmdCustom, Opcode: cmd.Opcode, Args: cmd.Args}
	if cmd.Opcode == fanlampOpPair {
		replay.Kind = CmdPair
	}
	params.TxCount--
	if packets := c.Encode(replay, &params); len(packets) > 0 {
		return packets[0]
	}
	return nil
}

func diffLabel(noDiff bool) string {
	if noDiff {
		return "NO DIFF"
	}
	return "DIFF"
}
