package core

// View is the display model of a session. It is derived from a Workflow and
// never stored, so every host renders exactly the same information.
type View struct {
	State       State      `json:"state"`
	Submittable bool       `json:"submittable"`
	Generation  uint64     `json:"generation"`
	Slots       []SlotView `json:"slots"`
	Header      []string   `json:"header,omitempty"`  // Shared header when both slots agree
	Columns     []string   `json:"columns,omitempty"` // Selected covariates, empty means all
	Warning     string     `json:"warning,omitempty"` // Persistent schema mismatch notice
	Error       *ErrorView `json:"error,omitempty"`
	Result      *Preview   `json:"result,omitempty"`
}

// SlotView describes one upload slot.
type SlotView struct {
	Slot    Slot    `json:"slot"`
	Label   string  `json:"label"`
	Loaded  bool    `json:"loaded"`
	File    string  `json:"file,omitempty"`
	Size    int64   `json:"size,omitempty"`
	Preview Preview `json:"preview"`
}

// ErrorView is the user-facing half of a WorkflowError.
type ErrorView struct {
	Category ErrorCategory `json:"category"`
	Message  string        `json:"message"`
	Action   string        `json:"action,omitempty"`
	Code     string        `json:"code"`
}

// schemaWarning is the text shown while the two headers differ.
const schemaWarning = "The experiment and control files have different headers. " +
	"Both files must use identical column headers in the same order."

// NewView builds the display model for w.
func NewView(w Workflow) View {
	v := View{
		State:       w.State(),
		Submittable: w.Submittable(),
		Generation:  w.Generation(),
		Header:      w.SharedHeader(),
		Columns:     w.Columns(),
	}

	for _, s := range Slots {
		st := w.Slot(s)
		v.Slots = append(v.Slots, SlotView{
			Slot:    s,
			Label:   s.Label(),
			Loaded:  st.Loaded,
			File:    st.File,
			Size:    st.Size,
			Preview: PreviewTable(st.Table),
		})
	}

	if w.Warning() != nil {
		v.Warning = schemaWarning
	}

	if werr := w.Err(); werr != nil {
		v.Error = &ErrorView{
			Category: werr.Category,
			Message:  werr.User.Message,
			Action:   werr.User.Action,
			Code:     werr.User.Code,
		}
	}

	if result, ok := w.Result(); ok {
		p := PreviewResult(result)
		v.Result = &p
	}

	return v
}

// SlotFor returns the view of slot s.
func (v View) SlotFor(s Slot) SlotView {
	for _, sv := range v.Slots {
		if sv.Slot == s {
			return sv
		}
	}
	return SlotView{Slot: s, Label: s.Label()}
}
