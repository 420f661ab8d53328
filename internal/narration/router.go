package narration

import "strings"

// Command is the routed outcome of a voice transcript: a client action
// identifier plus the spoken acknowledgement.
type Command struct {
	Action   string `json:"action"`
	Response string `json:"response"`
}

// Voice-command actions understood by the client.
const (
	ActionStartNutritionScan = "start_nutrition_scan"
	ActionStartScan          = "start_scan"
	ActionSearchMedicine     = "search_medicine"
	ActionFindDoctor         = "find_doctor"
	ActionViewHistory        = "view_history"
	ActionHelp               = "help"
	ActionUnknown            = "unknown"
)

// rule maps a keyword set to a command. Rules are evaluated in order and the
// first hit wins, so more specific intents must precede broader ones
// ("nutrition" before the generic "scan").
type rule struct {
	keywords []string
	command  Command
}

// Router matches transcripts against an ordered keyword table. The zero
// value is not usable; construct with NewRouter.
type Router struct {
	rules []rule
}

// NewRouter builds the default command table.
func NewRouter() *Router {
	return &Router{rules: []rule{
		{
			keywords: []string{"nutrition", "body"},
			command:  Command{Action: ActionStartNutritionScan, Response: "Starting your nutrition scan now. Please hold the camera steady."},
		},
		{
			keywords: []string{"scan", "face", "skin"},
			command:  Command{Action: ActionStartScan, Response: "Starting your skin scan now. Please look at the camera."},
		},
		{
			keywords: []string{"medicine", "dawai", "vitamin"},
			command:  Command{Action: ActionSearchMedicine, Response: "Opening the medicine search for you."},
		},
		{
			keywords: []string{"doctor", "consult", "appointment"},
			command:  Command{Action: ActionFindDoctor, Response: "Looking for doctors available near you."},
		},
		{
			keywords: []string{"history", "purana", "record"},
			command:  Command{Action: ActionViewHistory, Response: "Here is your scan history."},
		},
		{
			keywords: []string{"help", "madad"},
			command:  Command{Action: ActionHelp, Response: "You can say: scan my face, nutrition scan, find a doctor, show my history, or search medicine."},
		},
	}}
}

// Route matches a transcript case-insensitively by substring containment and
// returns the first matching command. Unmatched transcripts echo back as an
// unknown action so the client can prompt the user again.
func (r *Router) Route(transcript string) Command {
	lower := strings.ToLower(transcript)
	for _, rl := range r.rules {
		for _, kw := range rl.keywords {
			if strings.Contains(lower, kw) {
				return rl.command
			}
		}
	}
	return Command{
		Action:   ActionUnknown,
		Response: "Sorry, I did not understand: " + strings.TrimSpace(transcript) + ". Say help to hear what I can do.",
	}
}
