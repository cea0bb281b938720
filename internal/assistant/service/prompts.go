package service

const systemPrompt = "You are Aqua, a knowledgeable marine biology AI assistant. " +
	"You help users identify marine species, provide information about ocean life, marine ecosystems, " +
	"conservation, and answer questions about marine biology. Keep responses informative but concise."

const identifyPrompt = `Identify the marine species in this image. Please provide your response in the following JSON format:
{
    "commonName": "Common name of the species",
    "scientificName": "Scientific name",
    "description": "Brief description of the species",
    "confidence": 0.85,
    "habitat": "Where it's typically found",
    "characteristics": ["key feature 1", "key feature 2"]
}`

const datasetContextHeader = "Relevant records from the uploaded datasets:"

// stopWords are skipped when deriving search keywords from a chat message.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "are": {}, "for": {}, "with": {}, "what": {}, "where": {},
	"when": {}, "which": {}, "who": {}, "how": {}, "why": {}, "does": {}, "did": {},
	"can": {}, "could": {}, "would": {}, "should": {}, "about": {}, "tell": {},
	"you": {}, "your": {}, "this": {}, "that": {}, "these": {}, "those": {},
	"there": {}, "their": {}, "have": {}, "has": {}, "from": {}, "into": {},
	"live": {}, "lives": {}, "eat": {}, "eats": {}, "fish": {}, "species": {},
	"ocean": {}, "sea": {}, "marine": {}, "know": {}, "info": {}, "information": {},
}
