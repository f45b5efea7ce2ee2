package specialist

import (
	"regexp"
	"strings"
)

// wordSet matches any of its words as whole words.
type wordSet struct {
	re *regexp.Regexp
}

func words(list ...string) wordSet {
	quoted := make([]string, len(list))
	for i, w := range list {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return wordSet{re: regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)}
}

// In reports whether normalized text contains one of the words.
func (w wordSet) In(text string) bool {
	return w.re.MatchString(text)
}

var (
	affirmative = words("yes", "yeah", "yep", "sure", "ok", "okay", "please", "go ahead", "escalate", "do it")
	negative    = words("no", "nope", "cancel", "stop", "never mind", "nevermind", "don't", "do not")
	closing     = words("no", "nope", "done", "that's all", "nothing", "no thanks", "bye")
	helpWords   = words("yes", "help", "sure", "please")
	// consent is affirmative without the politeness words that also appear
	// in refusals ("please don't").
	consent = words("yes", "yeah", "yep", "sure", "ok", "okay", "go ahead", "escalate", "do it")

	politeNegations = regexp.MustCompile(`\b(no problem|no worries|no doubt)\b`)
	leadingNegative = regexp.MustCompile(`^\W*(no|nope|cancel|stop|never mind|nevermind|don't|do not)\b`)
)

// declines reports whether a reply to a yes/no question is a refusal. A
// reply that opens with a negative refuses; otherwise any affirmative word
// wins over negative ones ("yes please, I don't want it").
func declines(text string) bool {
	text = strings.TrimSpace(politeNegations.ReplaceAllString(text, ""))
	if leadingNegative.MatchString(text) {
		return true
	}
	return negative.In(text) && !consent.In(text)
}

// tokens splits normalized text into bare words.
func tokens(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range strings.Fields(text) {
		f = strings.Trim(f, ".,!?;:'\"()")
		if f != "" {
			out[f] = struct{}{}
		}
	}
	return out
}

// mentionsProduct reports whether text names the product, either in full
// or through one of its distinctive words ("headphones" for "Wireless
// Headphones"). Plural and singular forms match each other.
func mentionsProduct(text, productName string) bool {
	name := strings.ToLower(productName)
	if name == "" {
		return false
	}
	if strings.Contains(text, name) {
		return true
	}
	toks := tokens(text)
	for _, w := range strings.Fields(name) {
		if len(w) < 5 {
			continue
		}
		if _, ok := toks[w]; ok {
			return true
		}
		if _, ok := toks[strings.TrimSuffix(w, "s")]; ok {
			return true
		}
		if _, ok := toks[w+"s"]; ok {
			return true
		}
	}
	return false
}
