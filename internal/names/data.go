package names

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// honorifics are suffix words that carry respect, not identity. "Sharma ji"
// and "Sharma" are the same person.
var honorifics = map[string]bool{
	"ji":        true,
	"bhai":      true,
	"bhaiya":    true,
	"bhayya":    true,
	"bhaisahab": true,
	"sa":        true,
	"saab":      true,
	"sahab":     true,
	"sahib":     true,
	"didi":      true,
	"anna":      true,
	"akka":      true,
	"tai":       true,
	"kaka":      true,
	"chacha":    true,
	"mausi":     true,
	"aunty":     true,
	"uncle":     true,
	"madam":     true,
	"sir":       true,
	"seth":      true,
	"sethji":    true,
}

// nicknames maps a pet name to the formal names it commonly stands for.
// Checked in both directions by the matcher.
var nicknames = map[string][]string{
	"raju":   {"rahul", "rajesh", "raj", "rajendra", "rajkumar", "rajiv"},
	"sonu":   {"saurabh", "sohan", "sonal", "sunil"},
	"monu":   {"manoj", "mohan", "manish"},
	"abhi":   {"abhishek", "abhijeet", "abhinav", "abhay"},
	"sandy":  {"sandeep", "sandip", "sandhya"},
	"vicky":  {"vivek", "vikas", "vikram", "vignesh"},
	"deepu":  {"deepak", "dipak", "deepika"},
	"chintu": {"chirag", "chetan"},
	"guddu":  {"govind", "gourav", "gaurav"},
	"golu":   {"gopal", "gaurav"},
	"gopi":   {"gopal", "gopinath"},
	"pappu":  {"pradeep", "prakash"},
	"lucky":  {"lakshman", "laxman", "lakshya"},
	"kittu":  {"krishna", "kirti", "keerthi"},
	"sam":    {"sameer", "samir", "sampath"},
	"dev":    {"devendra", "devansh", "deepak"},
	"nandu":  {"nandan", "nandini", "nandlal"},
	"babloo": {"balram", "balwant"},
	"bittu":  {"bhupendra", "bhavesh"},
	"pinky":  {"priyanka", "pinki"},
	"chhotu": {"ashok", "chandan"},
	"munna":  {"mukesh", "munish"},
	"tinku":  {"tarun", "tushar"},
	"rinku":  {"ravindra", "rakesh"},
	"dolly":  {"damini", "divya"},
	"sweety": {"swati", "shweta"},
	"neetu":  {"nita", "nitika"},
	"shibu":  {"shivam", "shiv"},
	"montu":  {"mohit", "mahendra"},
	"bunty":  {"brijesh", "balbir"},
}

type overrideFile struct {
	Honorifics []string            `json:"honorifics"`
	Nicknames  map[string][]string `json:"nicknames"`
}

// LoadOverrides merges an operator-maintained JSON file into the built-in
// honorific and nickname tables. Call once at startup, before any matching.
// Format: {"honorifics": ["ji"], "nicknames": {"raju": ["rahul"]}}.
func LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read nickname overrides: %w", err)
	}
	var f overrideFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse nickname overrides: %w", err)
	}
	for _, h := range f.Honorifics {
		honorifics[strings.ToLower(strings.TrimSpace(h))] = true
	}
	for nick, formals := range f.Nicknames {
		nick = strings.ToLower(strings.TrimSpace(nick))
		for _, formal := range formals {
			nicknames[nick] = append(nicknames[nick], strings.ToLower(strings.TrimSpace(formal)))
		}
	}
	return nil
}
