// Package document converts an issue collection to and from its persisted byte form.
package document

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/runoshun/issue-crew/internal/domain"
	"github.com/runoshun/issue-crew/internal/infra/crypto"
)

// Codec encodes collections as JSON or YAML documents, optionally sealed with AES-256-GCM.
type Codec struct {
	sealer *crypto.Sealer
	format string
}

// NewCodec creates a Codec for the given format. An empty encryptionKey disables sealing.
func NewCodec(format, encryptionKey string) (*Codec, error) {
	switch format {
	case domain.FormatJSON, domain.FormatYAML:
	case "":
		format = domain.FormatJSON
	default:
		return nil, fmt.Errorf("%w: unknown document format %q", domain.ErrInvalidConfig, format)
	}

	c := &Codec{format: format}
	if encryptionKey != "" {
		sealer, err := crypto.NewSealer(encryptionKey)
		if err != nil {
			return nil, err
		}
		c.sealer = sealer
	}
	return c, nil
}

// JSON returns a plain JSON codec.
func JSON() *Codec {
	return &Codec{format: domain.FormatJSON}
}

// YAML returns a plain YAML codec.
func YAML() *Codec {
	return &Codec{format: domain.FormatYAML}
}

// Format returns the document format name.
func (c *Codec) Format() string {
	return c.format
}

// Encrypted reports whether documents are sealed.
func (c *Codec) Encrypted() bool {
	return c.sealer != nil
}

// Encode serializes the collection.
func (c *Codec) Encode(issues domain.Collection) ([]byte, error) {
	if issues == nil {
		issues = domain.Collection{}
	}

	var (
		data []byte
		err  error
	)
	switch c.format {
	case domain.FormatYAML:
		data, err = yaml.Marshal(issues)
	default:
		data, err = json.MarshalIndent(issues, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return nil, fmt.Errorf("marshal %s document: %w", c.format, err)
	}

	if c.sealer != nil {
		sealed, err := c.sealer.Seal(data)
		if err != nil {
			return nil, fmt.Errorf("seal document: %w", err)
		}
		return sealed, nil
	}
	return data, nil
}

// Decode parses a persisted document. Empty input yields an empty collection.
// Anything that cannot be turned into a valid collection is reported as
// domain.ErrStorageCorruption.
func (c *Codec) Decode(data []byte) (domain.Collection, error) {
	if len(data) == 0 {
		return domain.Collection{}, nil
	}

	if c.sealer != nil {
		plain, err := c.sealer.Open(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStorageCorruption, err)
		}
		data = plain
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return domain.Collection{}, nil
	}

	var issues domain.Collection
	var err error
	switch c.format {
	case domain.FormatYAML:
		err = yaml.Unmarshal(data, &issues)
	default:
		err = json.Unmarshal(data, &issues)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s document: %v", domain.ErrStorageCorruption, c.format, err)
	}

	// %v keeps the record error from matching domain.ErrValidation.
	if err := issues.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageCorruption, err)
	}

	if issues == nil {
		issues = domain.Collection{}
	}
	return issues, nil
}
