package stt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencerDeliversInOrder(t *testing.T) {
	var delivered []uint64
	s := NewSequencer(func(a *Attachment) {
		delivered = append(delivered, a.WindowSeq)
	})

	t0 := s.Submit()
	t1 := s.Submit()
	t2 := s.Submit()

	// Complete out of order
	s.Complete(t2, 2, nil)
	assert.Empty(t, delivered, "later window must wait for earlier ones")
	assert.Equal(t, 1, s.Pending())

	s.Complete(t0, 0, nil)
	assert.Equal(t, []uint64{0}, delivered)

	s.Complete(t1, 1, nil)
	assert.Equal(t, []uint64{0, 1, 2}, delivered)
	assert.Equal(t, 0, s.Pending())
}

func TestSequencerFailureInsertsGapAndUnblocks(t *testing.T) {
	var delivered []*Attachment
	s := NewSequencer(func(a *Attachment) {
		delivered = append(delivered, a)
	})

	t0 := s.Submit()
	t1 := s.Submit()
	t2 := s.Submit()

	s.Complete(t1, 11, []Segment{{Text: "later"}})
	s.Complete(t2, 12, []Segment{{Text: "latest"}})
	assert.Empty(t, delivered)

	// Window 10 fails: a gap is delivered and the queued windows follow
	s.Fail(t0, 10)

	require.Len(t, delivered, 3)
	assert.True(t, delivered[0].Gap)
	assert.Equal(t, uint64(10), delivered[0].WindowSeq)
	assert.Equal(t, "later", delivered[1].Segments[0].Text)
	assert.Equal(t, "latest", delivered[2].Segments[0].Text)
}

func TestSequencerSingleWindow(t *testing.T) {
	var delivered []*Attachment
	s := NewSequencer(func(a *Attachment) { delivered = append(delivered, a) })

	ticket := s.Submit()
	s.Complete(ticket, 0, []Segment{{Text: "only"}})

	require.Len(t, delivered, 1)
	assert.False(t, delivered[0].Gap)
}
