package trigger

// stopwords lists high-frequency English words excluded from phrase
// extraction.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"day": true, "get": true, "has": true, "him": true, "his": true,
	"how": true, "man": true, "new": true, "now": true, "old": true,
	"see": true, "two": true, "way": true, "who": true, "its": true,
	"did": true, "yes": true, "this": true, "that": true, "with": true,
	"from": true, "they": true, "will": true, "would": true, "there": true,
	"their": true, "what": true, "about": true, "which": true, "when": true,
	"make": true, "like": true, "time": true, "just": true, "know": true,
	"take": true, "into": true, "your": true, "some": true, "could": true,
	"them": true, "than": true, "then": true, "only": true, "over": true,
	"also": true, "after": true, "most": true, "where": true, "these": true,
	"been": true, "have": true, "were": true, "because": true, "does": true,
	"while": true, "should": true, "each": true, "such": true, "very": true,
	"more": true, "other": true, "using": true, "used": true,
	"use": true, "via": true, "per": true, "any": true, "may": true,
}
