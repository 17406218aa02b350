package wire

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const definitions = `
"identity": {
	"type": "object",
	"required": ["address"],
	"properties": {
		"address": {"type": "string", "minLength": 1},
		"accountId": {"type": "string"},
		"displayName": {"type": "string"},
		"avatar": {"type": "string"}
	}
},
"profile": {
	"type": "object",
	"required": ["address", "accountId"],
	"properties": {
		"address": {"type": "string", "minLength": 1},
		"accountId": {"type": "string", "minLength": 1},
		"displayName": {"type": "string"},
		"avatar": {"type": "string"}
	}
},
"id": {"type": "string", "minLength": 1},
"timestamp": {"type": "integer", "minimum": 0},
"meta": {
	"type": "object",
	"required": ["id", "ownerId", "visibility", "createdAt"],
	"properties": {
		"id": {"$ref": "#/$defs/id"},
		"ownerId": {"type": "string", "minLength": 1},
		"visibility": {"enum": ["public", "private"]},
		"createdAt": {"$ref": "#/$defs/timestamp"},
		"updatedAt": {"$ref": "#/$defs/timestamp"},
		"originPeerAddress": {"type": "string"},
		"collaborators": {"type": "array", "items": {"type": "string"}}
	}
},
"deck": {
	"allOf": [{"$ref": "#/$defs/meta"}],
	"properties": {
		"title": {"type": "string"},
		"description": {"type": "string"},
		"tags": {"type": "array", "items": {"type": "string"}},
		"creatorName": {"type": "string"}
	}
},
"card": {
	"allOf": [{"$ref": "#/$defs/meta"}],
	"required": ["deckId"],
	"properties": {
		"deckId": {"$ref": "#/$defs/id"},
		"front": {"type": "string"},
		"back": {"type": "string"},
		"image": {"type": "string"}
	}
},
"playlist": {
	"allOf": [{"$ref": "#/$defs/meta"}],
	"properties": {
		"title": {"type": "string"},
		"deckIds": {"type": "array", "items": {"$ref": "#/$defs/id"}}
	}
},
"stats": {
	"type": "object",
	"required": ["accountId", "deckId"],
	"properties": {
		"accountId": {"type": "string", "minLength": 1},
		"deckId": {"$ref": "#/$defs/id"},
		"practiceCount": {"type": "integer", "minimum": 0},
		"bestScore": {"type": "integer"},
		"lastStudiedAt": {"$ref": "#/$defs/timestamp"},
		"updatedAt": {"$ref": "#/$defs/timestamp"}
	}
},
"ids": {"type": "array", "items": {"$ref": "#/$defs/id"}},
"dataset": {
	"type": "object",
	"properties": {
		"decks": {"type": "array", "items": {"$ref": "#/$defs/deck"}},
		"cards": {"type": "array", "items": {"$ref": "#/$defs/card"}},
		"playlists": {"type": "array", "items": {"$ref": "#/$defs/playlist"}},
		"stats": {"type": "array", "items": {"$ref": "#/$defs/stats"}},
		"manifest": {
			"type": "object",
			"required": ["decks", "cards", "playlists"],
			"properties": {
				"decks": {"$ref": "#/$defs/ids"},
				"cards": {"$ref": "#/$defs/ids"},
				"playlists": {"$ref": "#/$defs/ids"}
			}
		}
	}
}`

// payload schemas by message type: required properties and their definitions.
var payloads = map[Type]string{
	TypeSyncRequest: `"required": ["from"],
		"properties": {"from": {"$ref": "#/$defs/identity"}, "requestId": {"type": "string"},
			"dataset": {"$ref": "#/$defs/dataset"}}`,
	TypeSyncResponse: `"required": ["from", "dataset"],
		"properties": {"from": {"$ref": "#/$defs/identity"}, "requestId": {"type": "string"},
			"dataset": {"$ref": "#/$defs/dataset"}}`,
	TypeDeckUpdate: `"required": ["from", "deck"],
		"properties": {"from": {"$ref": "#/$defs/identity"}, "deck": {"$ref": "#/$defs/deck"}}`,
	TypeCardUpdate: `"required": ["from", "card"],
		"properties": {"from": {"$ref": "#/$defs/identity"}, "card": {"$ref": "#/$defs/card"}}`,
	TypePlaylistUpdate: `"required": ["from", "playlist"],
		"properties": {"from": {"$ref": "#/$defs/identity"}, "playlist": {"$ref": "#/$defs/playlist"}}`,
	TypeDeckDelete: `"required": ["from", "id"],
		"properties": {"from": {"$ref": "#/$defs/identity"}, "id": {"$ref": "#/$defs/id"}}`,
	TypeCardDelete: `"required": ["from", "id"],
		"properties": {"from": {"$ref": "#/$defs/identity"}, "id": {"$ref": "#/$defs/id"}}`,
	TypePlaylistDelete: `"required": ["from", "id"],
		"properties": {"from": {"$ref": "#/$defs/identity"}, "id": {"$ref": "#/$defs/id"}}`,
	TypeProfileUpdate: `"required": ["from"],
		"properties": {"from": {"$ref": "#/$defs/profile"}}`,
	TypeStatsUpdate: `"required": ["from", "stats"],
		"properties": {"from": {"$ref": "#/$defs/identity"}, "stats": {"$ref": "#/$defs/stats"}}`,
	TypePeerRemoved: `"required": ["from", "removed"],
		"properties": {"from": {"$ref": "#/$defs/identity"}, "removed": {"type": "string", "minLength": 1}}`,
}

var schemas = compileSchemas()

func compileSchemas() map[Type]*jsonschema.Schema {
	rst := make(map[Type]*jsonschema.Schema, len(payloads))
	for typ, body := range payloads {
		doc := fmt.Sprintf(`{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	%s,
	"$defs": {%s}
}`, body, definitions)
		rst[typ] = jsonschema.MustCompileString(string(typ)+".schema.json", doc)
	}
	return rst
}
