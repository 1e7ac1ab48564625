package models

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// SegmentAddress packs a segment's name hash with its per-name rank
// into a single fleet-unique data-plane address:
// high 32 bits name hash, low 32 bits rank.
type SegmentAddress uint64

func NewSegmentAddress(nameHash uint32, rank uint32) SegmentAddress {
	return SegmentAddress(uint64(nameHash)<<32 | uint64(rank))
}

func (a SegmentAddress) NameHash() uint32 {
	return uint32(a >> 32)
}

func (a SegmentAddress) Rank() uint32 {
	return uint32(a)
}

func (a SegmentAddress) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

func (a SegmentAddress) MarshalJSON() ([]byte, error) {
	return []byte(`"` + a.String() + `"`), nil
}

func (a *SegmentAddress) UnmarshalJSON(data []byte) error {
	var id ID
	if err := id.UnmarshalJSON(data); err != nil {
		return err
	}
	*a = SegmentAddress(id)
	return nil
}

func (a SegmentAddress) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *SegmentAddress) UnmarshalText(data []byte) error {
	var id ID
	if err := id.UnmarshalText(data); err != nil {
		return err
	}
	*a = SegmentAddress(id)
	return nil
}

// SegmentNameHash derives the stable 32-bit hash of a segment name
// used in addressing.
func SegmentNameHash(name string) uint32 {
	return uint32(xxhash.Sum64String(name))
}

// SegmentInstance is one compute node placed on one worker.
type SegmentInstance struct {
	ID             ID             `json:"id"`
	Name           string         `json:"name"`
	NameHash       uint32         `json:"nameHash"`
	SegmentAddress SegmentAddress `json:"segmentAddress"`

	ExecutorID           ID `json:"executorId"`
	WorkerID             ID `json:"workerId"`
	PipelineInstanceID   ID `json:"pipelineInstanceId"`
	PipelineDefinitionID ID `json:"pipelineDefinitionId"`

	State ResourceState `json:"state"`
}

func (s *SegmentInstance) Ref() ResourceRef {
	return ResourceRef{Kind: KindSegmentInstances, ID: s.ID}
}

func (s *SegmentInstance) Clone() *SegmentInstance {
	out := *s
	out.State = s.State.Clone()
	return &out
}
