package multi

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sofie-iot/smaug-locker/internal/controller"
)

type recordingMember struct {
	name   string
	order  *[]string
	regs   []controller.Registration
	failOn string
}

func (m *recordingMember) SetPublisher(controller.Publisher) {
	*m.order = append(*m.order, m.name+":pub")
}
func (m *recordingMember) Initialize(context.Context) error {
	*m.order = append(*m.order, m.name+":init")
	if m.failOn == "init" {
		return errors.New("boom")
	}
	return nil
}
func (m *recordingMember) Uninitialize(context.Context) error {
	*m.order = append(*m.order, m.name+":uninit")
	return nil
}
func (m *recordingMember) Handlers() []controller.Registration { return m.regs }

func TestMultiFansOutInOrderAndTeardownReverses(t *testing.T) {
	var order []string
	a := &recordingMember{name: "a", order: &order, regs: []controller.Registration{{Topic: "/a"}}}
	b := &recordingMember{name: "b", order: &order, regs: []controller.Registration{{Topic: "/b"}}}

	m := New(a, b)
	m.SetPublisher(nil)
	require.NoError(t, m.Initialize(context.Background()))
	require.NoError(t, m.Uninitialize(context.Background()))

	assert.Equal(t, []string{"a:pub", "b:pub", "a:init", "b:init", "b:uninit", "a:uninit"}, order)

	handlers := m.Handlers()
	require.Len(t, handlers, 2)
	assert.Equal(t, "/a", handlers[0].Topic)
	assert.Equal(t, "/b", handlers[1].Topic)
}

func TestMultiInitializeStopsOnFirstError(t *testing.T) {
	var order []string
	a := &recordingMember{name: "a", order: &order, failOn: "init"}
	b := &recordingMember{name: "b", order: &order}

	m := New(a, b)
	err := m.Initialize(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"a:init"}, order)
}
