package ranking

// Rule is one line of the induction policy shown to operators.
type Rule struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	HardBlock   bool   `json:"hard_block" yaml:"hard_block"`
}

// Rules returns the constraint set applied by Rank, in evaluation order.
func Rules() []Rule {
	return []Rule{
		{Name: "fitness_certificates", Description: "Fitness certificates from rolling-stock, signalling and telecom must be valid at induction time", HardBlock: true},
		{Name: "job_cards", Description: "Open job-cards block service until closed", HardBlock: true},
		{Name: "branding", Description: "Branding exposure targets prioritise advertiser SLA hours"},
		{Name: "mileage", Description: "Mileage balancing keeps component wear within tolerance of the 950 km target"},
		{Name: "cleaning", Description: "Rakes due for deep cleaning are discouraged but not blocked"},
		{Name: "stabling", Description: "Stabling geometry minimises shunting and turn-out time"},
	}
}
