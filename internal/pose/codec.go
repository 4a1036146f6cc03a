package pose

import (
	"encoding/json"
	"errors"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("pose record version mismatch")

// Record is the serialized form of a pose.
type Record struct {
	SchemaVersion int       `json:"schema_version"`
	CodecVersion  int       `json:"codec_version"`
	Residues      []Residue `json:"residues"`
	Disulfides    [][2]int  `json:"disulfides,omitempty"`
}

func (p *Pose) Record() Record {
	return Record{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
		Residues:      p.Residues(),
		Disulfides:    p.Disulfides(),
	}
}

// FromRecord rebuilds a pose from its serialized form. Stored torsions are
// restored as-is, so a cis omega of 0 survives.
func FromRecord(rec Record) (*Pose, error) {
	if rec.SchemaVersion != CurrentSchemaVersion || rec.CodecVersion != CurrentCodecVersion {
		return nil, ErrVersionMismatch
	}
	p := newPose(rec.Residues, false)
	p.disulfides = append([][2]int(nil), rec.Disulfides...)
	return p, nil
}

func Encode(p *Pose) ([]byte, error) {
	return json.Marshal(p.Record())
}

func Decode(data []byte) (*Pose, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return FromRecord(rec)
}
