package presenter

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soocke/framepipe/ui/model"
)

type mockService struct {
	started, stopped, paused, resumed int
	startErr                          error
}

func (s *mockService) Start(context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.started++
	return nil
}
func (s *mockService) Stop()   { s.stopped++ }
func (s *mockService) Pause()  { s.paused++ }
func (s *mockService) Resume() { s.resumed++ }

type mockView struct {
	reset, editableCalls int
	lastEditable         bool
	status               string
}

func (v *mockView) PreviewReset()             { v.reset++ }
func (v *mockView) ConfigEditable(b bool)     { v.editableCalls++; v.lastEditable = b }
func (v *mockView) SetCaptureStatus(s string) { v.status = s }

func newCapturePresenter(svc *mockService, view *mockView) (*CapturePresenter, *model.CaptureModel) {
	m := &model.CaptureModel{}
	return NewCapturePresenter(context.Background(), m, svc, view, nil), m
}

func TestCapturePresenter_EnableDisable_Idempotent(t *testing.T) {
	svc, view := &mockService{}, &mockView{}
	p, m := newCapturePresenter(svc, view)

	p.Enable()
	assert.True(t, m.Enabled())
	assert.Equal(t, 1, svc.started)
	assert.False(t, view.lastEditable)
	assert.Equal(t, "capturing", view.status)

	p.Enable()
	assert.Equal(t, 1, svc.started, "enable is idempotent")

	p.Disable()
	assert.False(t, m.Enabled())
	assert.Equal(t, 1, svc.stopped)
	assert.Equal(t, 1, view.reset)
	assert.True(t, view.lastEditable)
	assert.Equal(t, 2, view.editableCalls)
	assert.Equal(t, "off", view.status)

	p.Disable()
	assert.Equal(t, 1, svc.stopped, "disable is idempotent")
	assert.Equal(t, 1, view.reset)
}

func TestCapturePresenter_StartFailureLeavesDisabled(t *testing.T) {
	svc, view := &mockService{startErr: errors.New("no display")}, &mockView{}
	p, m := newCapturePresenter(svc, view)
	p.Toggle()
	assert.False(t, m.Enabled())
	assert.Zero(t, view.editableCalls)
	assert.Equal(t, "error: no display", view.status)
}

func TestCapturePresenter_TogglePause(t *testing.T) {
	svc, view := &mockService{}, &mockView{}
	p, m := newCapturePresenter(svc, view)

	p.TogglePause()
	assert.Zero(t, svc.paused, "ignored while disabled")

	p.Toggle()
	p.TogglePause()
	assert.True(t, m.Paused())
	assert.Equal(t, 1, svc.paused)
	assert.Equal(t, "paused", view.status)

	p.TogglePause()
	assert.False(t, m.Paused())
	assert.Equal(t, 1, svc.resumed)
	assert.Equal(t, "capturing", view.status)

	p.Toggle()
	assert.Equal(t, 1, svc.stopped)
}

func TestCapturePresenter_DisableWhilePausedResumesService(t *testing.T) {
	svc, view := &mockService{}, &mockView{}
	p, m := newCapturePresenter(svc, view)

	p.Enable()
	p.TogglePause()
	p.Disable()
	assert.Equal(t, 1, svc.resumed)
	assert.Equal(t, 1, svc.stopped)
	assert.False(t, m.Paused())

	p.Enable()
	assert.Equal(t, "capturing", view.status)
}
