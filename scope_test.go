package vdbview

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingChild struct {
	name  string
	order *[]string
}

func (c *recordingChild) Cleanup() {
	*c.order = append(*c.order, c.name)
}

func TestCloseScopeCleansChildrenInRegistrationOrder(t *testing.T) {
	var order []string
	s := &RuntimeScope{}
	s.RegisterChild(&recordingChild{"uniforms", &order})
	s.RegisterChild(&recordingChild{"cache", &order})
	s.RegisterChild(&recordingChild{"window", &order})

	s.CloseScope()
	assert.Equal(t, []string{"uniforms", "cache", "window"}, order)
	assert.True(t, s.Closed())
}

func TestCloseScopeIsIdempotent(t *testing.T) {
	var order []string
	s := &RuntimeScope{}
	s.RegisterChild(&recordingChild{"child", &order})

	s.CloseScope()
	s.CloseScope()
	assert.Len(t, order, 1, "children cleaned exactly once")
}

func TestRegisterChildOnClosedScopePanics(t *testing.T) {
	s := &RuntimeScope{}
	s.CloseScope()

	var order []string
	assert.Panics(t, func() {
		s.RegisterChild(&recordingChild{"late", &order})
	})
}
