package xrm

import (
	"context"
	"fmt"
)

// ControlState is a form control as the user sees it.
type ControlState struct {
	// Visible accounts for the enclosing section and tab.
	Visible  bool `json:"isVisible"`
	Disabled bool `json:"isDisabled"`
}

// Option is one entry of an option set control.
type Option struct {
	Value int    `json:"value"`
	Text  string `json:"text"`
}

const (
	controlStateScript = `(name) => {
		const control = window.Xrm.Page.getControl(name);
		if (!control) throw new Error("Control '" + name + "' not found");
		const section = control.getParent && control.getParent();
		const tab = section && section.getParent && section.getParent();
		return {
			isVisible: control.getVisible() && (!section || section.getVisible()) && (!tab || tab.getVisible()),
			isDisabled: !!(control.getDisabled && control.getDisabled()),
		};
	}`
	controlOptionsScript = `(name) => {
		const control = window.Xrm.Page.getControl(name);
		if (!control) throw new Error("OptionSet control '" + name + "' not found");
		return control.getOptions();
	}`
)

// Control inspects form controls by name.
type Control struct {
	xrm *Helper
}

func NewControl(h *Helper) *Control { return &Control{xrm: h} }

func (c *Control) State(ctx context.Context, name string) (ControlState, error) {
	var st ControlState
	if err := c.xrm.EvalInto(ctx, controlStateScript, name, &st); err != nil {
		return st, fmt.Errorf("control %s: %w", name, err)
	}
	return st, nil
}

// Options returns the choices of an option set control.
func (c *Control) Options(ctx context.Context, name string) ([]Option, error) {
	var opts []Option
	if err := c.xrm.EvalInto(ctx, controlOptionsScript, name, &opts); err != nil {
		return nil, fmt.Errorf("control %s options: %w", name, err)
	}
	return opts, nil
}

func (c *Control) IsVisible(ctx context.Context, name string) (bool, error) {
	st, err := c.State(ctx, name)
	return st.Visible, err
}

func (c *Control) IsDisabled(ctx context.Context, name string) (bool, error) {
	st, err := c.State(ctx, name)
	return st.Disabled, err
}
