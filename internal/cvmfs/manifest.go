package cvmfs

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Manifest field tags as they appear in .cvmfspublished.
const (
	TagRootCatalogHash    byte = 'C'
	TagRootCatalogSize    byte = 'B'
	TagAlternativeName    byte = 'A'
	TagRootPathHash       byte = 'R'
	TagCertificateHash    byte = 'X'
	TagGarbageCollectable byte = 'G'
	TagTagHistoryHash     byte = 'H'
	TagTimestamp          byte = 'T'
	TagCatalogTTL         byte = 'D'
	TagRevision           byte = 'S'
	TagName               byte = 'N'
	TagMetadataHash       byte = 'M'
	TagReflogHash         byte = 'Y'
	TagMicroCatalogs      byte = 'L'
)

const signatureMarker = "--"

// Manifest is the signed state record of one repository revision.
// The signature is carried opaquely and never verified.
type Manifest struct {
	RootCatalogHash    HexString `json:"root_catalog_hash"`
	RootCatalogSize    int64     `json:"root_catalog_size"`
	AlternativeName    bool      `json:"alternative_name"`
	RootPathHash       HexString `json:"root_path_hash"`
	CertificateHash    HexString `json:"certificate_hash"`
	GarbageCollectable bool      `json:"garbage_collectable"`
	TagHistoryHash     HexString `json:"tag_history_hash"`
	Timestamp          int64     `json:"timestamp"`
	CatalogTTL         int32     `json:"catalog_ttl"`
	Revision           int32     `json:"revision"`
	Name               string    `json:"name"`
	MetadataHash       HexString `json:"metadata_hash"`
	ReflogHash         HexString `json:"reflog_hash"`
	MicroCatalogs      string    `json:"micro_catalogs,omitempty"`
	Signature          []byte    `json:"-"`
}

// ParseManifest decodes a .cvmfspublished blob. Lines before the "--" marker
// are tag/value pairs keyed by their first byte; every line after it is
// concatenated into the signature.
func ParseManifest(content []byte) (Manifest, error) {
	fields := make(map[byte]string)
	var signature []byte
	inSignature := false

	for _, line := range splitLines(content) {
		if inSignature {
			signature = append(signature, line...)
			continue
		}
		if string(line) == signatureMarker {
			inSignature = true
			continue
		}
		if len(line) == 0 {
			continue
		}
		fields[line[0]] = string(line[1:])
	}

	p := fieldParser{fields: fields}
	m := Manifest{
		RootCatalogHash:    p.hex(TagRootCatalogHash),
		RootCatalogSize:    p.integer64(TagRootCatalogSize),
		AlternativeName:    p.boolean(TagAlternativeName),
		RootPathHash:       p.hex(TagRootPathHash),
		CertificateHash:    p.hex(TagCertificateHash),
		GarbageCollectable: p.boolean(TagGarbageCollectable),
		TagHistoryHash:     p.hex(TagTagHistoryHash),
		Timestamp:          p.integer64(TagTimestamp),
		CatalogTTL:         p.integer32(TagCatalogTTL),
		Revision:           p.integer32(TagRevision),
		Name:               p.required(TagName),
		MetadataHash:       p.hex(TagMetadataHash),
		ReflogHash:         p.hex(TagReflogHash),
		MicroCatalogs:      fields[TagMicroCatalogs],
		Signature:          signature,
	}
	if p.err != nil {
		return Manifest{}, p.err
	}
	return m, nil
}

// Encode renders the manifest back into the .cvmfspublished text format.
func (m Manifest) Encode() []byte {
	var b bytes.Buffer
	line := func(tag byte, value string) {
		b.WriteByte(tag)
		b.WriteString(value)
		b.WriteByte('\n')
	}
	line(TagRootCatalogHash, string(m.RootCatalogHash))
	line(TagRootCatalogSize, strconv.FormatInt(m.RootCatalogSize, 10))
	line(TagAlternativeName, yesNo(m.AlternativeName))
	line(TagRootPathHash, string(m.RootPathHash))
	line(TagCertificateHash, string(m.CertificateHash))
	line(TagGarbageCollectable, yesNo(m.GarbageCollectable))
	line(TagTagHistoryHash, string(m.TagHistoryHash))
	line(TagTimestamp, strconv.FormatInt(m.Timestamp, 10))
	line(TagCatalogTTL, strconv.FormatInt(int64(m.CatalogTTL), 10))
	line(TagRevision, strconv.FormatInt(int64(m.Revision), 10))
	line(TagName, m.Name)
	line(TagMetadataHash, string(m.MetadataHash))
	line(TagReflogHash, string(m.ReflogHash))
	if m.MicroCatalogs != "" {
		line(TagMicroCatalogs, m.MicroCatalogs)
	}
	b.WriteString(signatureMarker)
	b.WriteByte('\n')
	b.Write(m.Signature)
	return b.Bytes()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// splitLines splits on '\n' and drops a trailing '\r' from each line. A final
// newline does not produce an empty trailing line.
func splitLines(content []byte) [][]byte {
	if len(content) == 0 {
		return nil
	}
	lines := bytes.Split(content, []byte("\n"))
	if len(lines[len(lines)-1]) == 0 {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = bytes.TrimSuffix(l, []byte("\r"))
	}
	return lines
}

// fieldParser decodes tagged fields and keeps the first error it meets.
type fieldParser struct {
	fields map[byte]string
	err    error
}

func (p *fieldParser) fail(tag byte, err error) {
	if p.err == nil {
		p.err = &FieldError{Field: tag, Err: err}
	}
}

func (p *fieldParser) required(tag byte) string {
	v, ok := p.fields[tag]
	if !ok {
		p.fail(tag, ErrMissingField)
	}
	return v
}

// ParseBoolField is true iff the value case-insensitively equals "yes". The
// field must be present.
func ParseBoolField(fields map[byte]string, tag byte) (bool, error) {
	v, ok := fields[tag]
	if !ok {
		return false, &FieldError{Field: tag, Err: ErrMissingField}
	}
	return strings.EqualFold(v, "yes"), nil
}

// ParseHexField decodes a present hash-like field.
func ParseHexField(fields map[byte]string, tag byte) (HexString, error) {
	v, ok := fields[tag]
	if !ok {
		return "", &FieldError{Field: tag, Err: ErrMissingField}
	}
	h, err := ParseHexString(v)
	if err != nil {
		return "", &FieldError{Field: tag, Err: err}
	}
	return h, nil
}

// ParseIntField decodes a present base-10 signed integer field of the given bit size.
func ParseIntField(fields map[byte]string, tag byte, bitSize int) (int64, error) {
	v, ok := fields[tag]
	if !ok {
		return 0, &FieldError{Field: tag, Err: ErrMissingField}
	}
	n, err := strconv.ParseInt(v, 10, bitSize)
	if err != nil {
		return 0, &FieldError{Field: tag, Err: fmt.Errorf("%w: %v", ErrInvalidNumber, err)}
	}
	return n, nil
}

func (p *fieldParser) boolean(tag byte) bool {
	v, err := ParseBoolField(p.fields, tag)
	p.keep(err)
	return v
}

func (p *fieldParser) hex(tag byte) HexString {
	v, err := ParseHexField(p.fields, tag)
	p.keep(err)
	return v
}

func (p *fieldParser) integer64(tag byte) int64 {
	v, err := ParseIntField(p.fields, tag, 64)
	p.keep(err)
	return v
}

func (p *fieldParser) integer32(tag byte) int32 {
	v, err := ParseIntField(p.fields, tag, 32)
	p.keep(err)
	return int32(v)
}

func (p *fieldParser) keep(err error) {
	if err != nil && p.err == nil {
		p.err = err
	}
}
