package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// DomainModel is the domain prefix for model fingerprints.
// Version suffix enables future algorithm migration.
const DomainModel = "qindex/model/v1"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ModelFingerprint returns a stable hash of the model.
//
// Entity, composite and enum lists are sorted by name and all names are
// NFC normalized before encoding, so two models that differ only in
// declaration order of types hash identically. Member order is kept: it
// determines table numbering.
func ModelFingerprint(m Model) (string, error) {
	c := canonicalModel(m)
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("ModelFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainModel, data), nil
}

func canonicalModel(m Model) Model {
	out := Model{
		Entities:   make([]EntityDescriptor, len(m.Entities)),
		Composites: make([]CompositeDescriptor, len(m.Composites)),
		Enums:      make([]EnumDescriptor, len(m.Enums)),
	}
	for i, e := range m.Entities {
		e.Name = norm.NFC.String(e.Name)
		sups := append([]string(nil), e.Supertypes...)
		sort.Strings(sups)
		e.Supertypes = sups
		out.Entities[i] = e
	}
	for i, c := range m.Composites {
		c.Name = norm.NFC.String(c.Name)
		out.Composites[i] = c
	}
	for i, en := range m.Enums {
		en.Name = norm.NFC.String(en.Name)
		out.Enums[i] = en
	}
	sort.Slice(out.Entities, func(i, j int) bool { return out.Entities[i].Name < out.Entities[j].Name })
	sort.Slice(out.Composites, func(i, j int) bool { return out.Composites[i].Name < out.Composites[j].Name })
	sort.Slice(out.Enums, func(i, j int) bool { return out.Enums[i].Name < out.Enums[j].Name })
	return out
}
