package planner

import (
	"fmt"

	"github.com/Nomadcxx/jellyrename/internal/naming"
)

// Overrides changes selected options for one batch. Nil fields keep the
// current value.
type Overrides struct {
	Mode         *string `json:"mode,omitempty"`
	Template     *string `json:"template,omitempty"`
	ShowTemplate *string `json:"show_template,omitempty"`
	Policy       *string `json:"policy,omitempty"`
	SerialPrefix *string `json:"serial_prefix,omitempty"`
	SerialBase   *int    `json:"serial_base,omitempty"`
	SerialWidth  *int    `json:"serial_width,omitempty"`
	TitleCase    *bool   `json:"title_case,omitempty"`
}

// Apply returns opts with the overrides applied. An empty ShowTemplate
// clears it.
func (o Overrides) Apply(opts Options) (Options, error) {
	if o.Mode != nil {
		mode, err := ParseMode(*o.Mode)
		if err != nil {
			return opts, err
		}
		opts.Mode = mode
	}
	if o.Policy != nil {
		policy, err := ParsePolicy(*o.Policy)
		if err != nil {
			return opts, err
		}
		opts.Policy = policy
	}
	if o.Template != nil {
		tmpl, err := naming.ParseTemplate(*o.Template)
		if err != nil {
			return opts, err
		}
		opts.Template = tmpl
	}
	if o.ShowTemplate != nil {
		if *o.ShowTemplate == "" {
			opts.ShowTemplate = nil
		} else {
			tmpl, err := naming.ParseTemplate(*o.ShowTemplate)
			if err != nil {
				return opts, err
			}
			opts.ShowTemplate = tmpl
		}
	}
	if o.SerialPrefix != nil {
		opts.SerialPrefix = *o.SerialPrefix
	}
	if o.SerialBase != nil {
		if *o.SerialBase < 0 {
			return opts, fmt.Errorf("serial base must not be negative, got %d", *o.SerialBase)
		}
		opts.SerialBase = *o.SerialBase
	}
	if o.SerialWidth != nil {
		if *o.SerialWidth < 1 || *o.SerialWidth > 9 {
			return opts, fmt.Errorf("serial width must be between 1 and 9, got %d", *o.SerialWidth)
		}
		opts.SerialWidth = *o.SerialWidth
	}
	if o.TitleCase != nil {
		opts.TitleCase = *o.TitleCase
	}
	return opts, nil
}

// Empty reports whether no field is set.
func (o Overrides) Empty() bool {
	return o == Overrides{}
}
