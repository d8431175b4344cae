package services

// Incident records a sequence or artifact that a stage could not advance. The
// subject stays where it is; the incident is surfaced in the run report so an
// operator can resolve it by hand.
type Incident struct {
	Sequence string `json:"sequence"`
	Path     string `json:"path,omitempty"`
	Stage    string `json:"stage"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Err      error  `json:"-"`
}

// NewIncident builds an Incident, deriving Kind and Message from err.
func NewIncident(sequence, path, stage string, err error) Incident {
	inc := Incident{
		Sequence: sequence,
		Path:     path,
		Stage:    stage,
		Kind:     Kind(err),
		Err:      err,
	}
	if err != nil {
		inc.Message = err.Error()
	}
	return inc
}
