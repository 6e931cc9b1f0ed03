package coaching

// Contact-side phrases that signal a sales objection.
var objectionPhrases = []string{
	"not interested",
	"too expensive",
	"can't afford",
	"cannot afford",
	"already have",
	"no thanks",
	"not a good time",
	"think about it",
	"need to ask",
	"talk to my",
	"send me an email",
	"call me back",
	"no me interesa",
	"es muy caro",
	"pas interesse",
	"kein interesse",
}

// Contact-side phrases that signal buying intent.
var buyingSignalPhrases = []string{
	"how much",
	"what does it cost",
	"what's the price",
	"sign me up",
	"sounds good",
	"where do i sign",
	"when can we start",
	"how do i get started",
	"send me the contract",
	"that works for me",
	"cuanto cuesta",
	"me interesa",
	"combien ca coute",
	"was kostet",
}
