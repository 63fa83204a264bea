// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package model holds the media request, work unit and outcome types shared by
// every stage of a media assembly run.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// MediaRequest is the declarative input of one assembly run. It is immutable once
// it has passed ingress validation.
type MediaRequest struct {
	TaskName    string   `json:"task_name" yaml:"task_name"`
	VideoBlocks Blocks   `json:"video_blocks" yaml:"video_blocks"`
	AudioBlocks Blocks   `json:"audio_blocks" yaml:"audio_blocks"`
	Scripts     []Script `json:"text_to_speech" yaml:"text_to_speech"`
}

// Script is one voiceover candidate.
type Script struct {
	Text  string `json:"text" yaml:"text"`
	Voice string `json:"voice" yaml:"voice"`
}

// Block is a named, ordered list of source locators.
type Block struct {
	Name     string
	Locators []string
}

// Blocks is an ordered list of named blocks. On the wire it is an object whose
// key order is significant, so it does not decode into a map.
type Blocks []Block

// Len returns the total number of locators across all blocks.
func (b Blocks) Len() int {
	n := 0
	for _, blk := range b {
		n += len(blk.Locators)
	}
	return n
}

// Flatten returns every locator, blocks in order and locators in order.
func (b Blocks) Flatten() []string {
	out := make([]string, 0, b.Len())
	for _, blk := range b {
		out = append(out, blk.Locators...)
	}
	return out
}

// UnmarshalJSON decodes a JSON object of arrays, preserving key order.
func (b *Blocks) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*b = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("blocks: expected object, got %v", tok)
	}
	var out Blocks
	seen := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("blocks: expected string key, got %v", keyTok)
		}
		var locators []string
		if err := dec.Decode(&locators); err != nil {
			return fmt.Errorf("blocks: %q: %w", key, err)
		}
		if i, dup := seen[key]; dup {
			// Last value wins, first position is kept.
			out[i].Locators = locators
			continue
		}
		seen[key] = len(out)
		out = append(out, Block{Name: key, Locators: locators})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*b = out
	return nil
}

// MarshalJSON encodes the blocks as a JSON object in block order.
func (b Blocks) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, blk := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(blk.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		locators := blk.Locators
		if locators == nil {
			locators = []string{}
		}
		val, err := json.Marshal(locators)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalYAML decodes a YAML mapping of sequences, preserving key order.
func (b *Blocks) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		*b = nil
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("blocks: line %d: expected mapping", node.Line)
	}
	out := make(Blocks, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var name string
		if err := node.Content[i].Decode(&name); err != nil {
			return err
		}
		var locators []string
		if err := node.Content[i+1].Decode(&locators); err != nil {
			return fmt.Errorf("blocks: %q: %w", name, err)
		}
		out = append(out, Block{Name: name, Locators: locators})
	}
	*b = out
	return nil
}
