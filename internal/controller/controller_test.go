package controller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubController struct {
	pub     Publisher
	handled []string
	regs    []Registration
}

func (s *stubController) SetPublisher(pub Publisher)             { s.pub = pub }
func (s *stubController) Initialize(ctx context.Context) error   { return nil }
func (s *stubController) Uninitialize(ctx context.Context) error { return nil }
func (s *stubController) Handlers() []Registration               { return s.regs }

func TestRuntimeInjectDispatchesToMatchingHandler(t *testing.T) {
	stub := &stubController{}
	stub.regs = []Registration{
		{Topic: "/lock", Handler: func(ctx context.Context, payload map[string]interface{}, responseTopic string) error {
			stub.handled = append(stub.handled, "lock")
			return nil
		}},
		{Topic: "/lock/state", Handler: func(ctx context.Context, payload map[string]interface{}, responseTopic string) error {
			stub.handled = append(stub.handled, "state")
			return nil
		}},
	}

	rt := &Runtime{controller: stub}
	err := rt.Inject(context.Background(), "/lock/state", map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, []string{"state"}, stub.handled)
}

func TestRuntimeInjectReturnsErrorForUnknownTopic(t *testing.T) {
	stub := &stubController{regs: []Registration{{Topic: "/lock", Handler: func(context.Context, map[string]interface{}, string) error { return nil }}}}
	rt := &Runtime{controller: stub}
	err := rt.Inject(context.Background(), "/nonexistent", nil)
	require.Error(t, err)
}
