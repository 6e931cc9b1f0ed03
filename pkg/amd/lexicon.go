package amd

// phrase is one lexicon entry with a match weight. Multi-word phrases carry
// more weight than single words.
type phrase struct {
	text   string
	weight float64
}

// Voicemail and greeting phrases across the languages the dialer operates
// in. Matching any of these in the contact audio leans the keyword estimator
// toward machine.
var machinePhrases = []phrase{
	// English
	{"leave a message", 1.0},
	{"leave your message", 1.0},
	{"after the tone", 1.0},
	{"after the beep", 1.0},
	{"at the tone", 0.9},
	{"please record", 0.9},
	{"record your message", 1.0},
	{"voicemail", 0.8},
	{"voice mail", 0.8},
	{"mailbox", 0.7},
	{"is not available", 0.8},
	{"not available right now", 0.9},
	{"unable to take your call", 1.0},
	{"cannot take your call", 1.0},
	{"you have reached", 0.8},
	{"the person you are calling", 0.9},
	{"has been forwarded", 0.8},
	{"automated", 0.6},

	// Spanish
	{"deje su mensaje", 1.0},
	{"deje un mensaje", 1.0},
	{"despues del tono", 1.0},
	{"buzon de voz", 0.9},
	{"no esta disponible", 0.8},

	// French
	{"laissez un message", 1.0},
	{"apres le bip", 1.0},
	{"messagerie vocale", 0.9},
	{"n'est pas disponible", 0.8},

	// German
	{"hinterlassen sie eine nachricht", 1.0},
	{"nach dem signalton", 1.0},
	{"mailbox von", 0.9},
	{"nicht erreichbar", 0.8},
}

// Conversational phrases that lean toward a live human.
var humanPhrases = []phrase{
	{"hello", 0.4},
	{"hi there", 0.6},
	{"speaking", 0.8},
	{"this is", 0.5},
	{"who is this", 0.9},
	{"who's calling", 0.9},
	{"how are you", 0.8},
	{"can i help", 0.8},
	{"what's this about", 0.9},
	{"hold on", 0.8},
	{"one moment", 0.7},
	{"yeah", 0.5},
	{"sorry", 0.5},

	// Spanish
	{"quien habla", 0.9},
	{"digame", 0.8},
	{"un momento", 0.7},

	// French
	{"qui est a l'appareil", 0.9},
	{"un instant", 0.7},

	// German
	{"wer spricht", 0.9},
	{"einen moment", 0.7},
}
