package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"confsearch/internal/pose"
)

type poseFlags struct {
	path     string
	sequence string
	out      string
}

// load reads a pose record from path, or builds an extended chain from the
// sequence.
func (f poseFlags) load() (*pose.Pose, error) {
	switch {
	case f.path != "" && f.sequence != "":
		return nil, errors.New("use either --pose or --sequence, not both")
	case f.path != "":
		return readPose(f.path)
	case strings.TrimSpace(f.sequence) != "":
		return pose.FromSequence(strings.ToUpper(strings.TrimSpace(f.sequence))), nil
	default:
		return nil, errors.New("a starting pose is required (--pose or --sequence)")
	}
}

func readPose(path string) (*pose.Pose, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := pose.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode pose %s: %w", path, err)
	}
	return p, nil
}

func writePose(path string, p *pose.Pose) error {
	if path == "" || p == nil {
		return nil
	}
	data, err := pose.Encode(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}
