// Package fleet defines the rake (trainset) attributes evaluated during
// nightly induction, and decodes them from uploaded tables.
package fleet

// Subsystem identifies one of the independent departments that must issue a
// fitness certificate before a rake may enter service.
type Subsystem int

// Subsystems in their fixed reporting order.
const (
	RollingStock Subsystem = iota
	Signalling
	Telecom

	numSubsystems
)

// Subsystems returns every subsystem in reporting order.
func Subsystems() []Subsystem {
	return []Subsystem{RollingStock, Signalling, Telecom}
}

// Label returns the operator-facing name of the subsystem.
func (s Subsystem) Label() string {
	switch s {
	case RollingStock:
		return "Rolling-Stock"
	case Signalling:
		return "Signalling"
	case Telecom:
		return "Telecom"
	default:
		return "Unknown"
	}
}

// Rake holds one trainset's operational signals for a single night.
// Values are treated as read-only inputs by scoring and ranking.
type Rake struct {
	ID string `json:"id" yaml:"id"`

	// Certified is indexed by Subsystem.
	Certified [numSubsystems]bool `json:"certified" yaml:"certified"`

	OpenJobCards           int     `json:"open_job_cards" yaml:"open_job_cards"`                     // open maintenance job-cards
	BrandingShortfallHours float64 `json:"branding_shortfall_hours" yaml:"branding_shortfall_hours"` // hours below advertiser target
	MileageKm              float64 `json:"mileage_km" yaml:"mileage_km"`                             // recent cumulative distance
	CleaningDue            bool    `json:"cleaning_due" yaml:"cleaning_due"`                         // deep clean due tonight
	StablingPenalty        int     `json:"stabling_penalty" yaml:"stabling_penalty"`                 // 0-100, higher is worse
}

// FitnessCertified reports whether the given subsystem has signed off the rake.
func (r Rake) FitnessCertified(s Subsystem) bool {
	if s < 0 || s >= numSubsystems {
		return false
	}
	return r.Certified[s]
}

// CertifiedCount returns how many subsystems have signed off.
func (r Rake) CertifiedCount() int {
	n := 0
	for _, ok := range r.Certified {
		if ok {
			n++
		}
	}
	return n
}

// FullyCertified reports whether every subsystem has signed off.
func (r Rake) FullyCertified() bool {
	return r.CertifiedCount() == int(numSubsystems)
}

// NumSubsystems is the number of certifying subsystems.
const NumSubsystems = int(numSubsystems)
