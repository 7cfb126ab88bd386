package session

import "github.com/xeipuuv/gojsonschema"

// Each import section may be null, which clears that record.
const sessionSchema = `{
  "type": ["object", "null"],
  "required": ["user_id", "session_id", "created_at", "last_activity"],
  "properties": {
    "user_id": {"type": "string"},
    "session_id": {"type": "string"},
    "created_at": {"type": "string", "format": "date-time"},
    "last_activity": {"type": "string", "format": "date-time"},
    "authenticated": {"type": "boolean"}
  }
}`

const userDataSchema = `{
  "type": ["object", "null"],
  "properties": {
    "user_id": {"type": "string"},
    "display_name": {"type": "string"},
    "email": {"type": ["string", "null"]},
    "preferences": {"type": ["object", "null"]},
    "created_at": {"type": "string", "format": "date-time"}
  }
}`

const conversationSchema = `{
  "type": ["object", "null"],
  "properties": {
    "conversation_id": {"type": "string"},
    "messages": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["role", "content"],
        "properties": {
          "id": {"type": "string"},
          "role": {"enum": ["user", "assistant"]},
          "content": {"type": "string"},
          "agent_name": {"type": "string"},
          "anxiety_escalation": {"type": ["number", "null"]},
          "timestamp": {"type": "string", "format": "date-time"}
        }
      }
    },
    "current_anxiety_level": {"type": "string"},
    "anxiety_history": {
      "type": ["array", "null"],
      "maxItems": 50,
      "items": {
        "type": "object",
        "required": ["level"],
        "properties": {
          "level": {"type": "string"},
          "timestamp": {"type": "string", "format": "date-time"},
          "trigger": {"type": "string"}
        }
      }
    },
    "agents_involved": {"type": ["array", "null"], "items": {"type": "string"}},
    "start_time": {"type": ["string", "null"], "format": "date-time"},
    "last_message_time": {"type": ["string", "null"], "format": "date-time"}
  }
}`

// Settings values are whatever UpdateSettings accepted, so any JSON value
// is allowed under a setting name.
const settingsSchema = `{
  "type": ["object", "null"],
  "additionalProperties": true
}`

var sectionSchemas = map[string]gojsonschema.JSONLoader{
	SectionSession:      gojsonschema.NewStringLoader(sessionSchema),
	SectionUserData:     gojsonschema.NewStringLoader(userDataSchema),
	SectionConversation: gojsonschema.NewStringLoader(conversationSchema),
	SectionSettings:     gojsonschema.NewStringLoader(settingsSchema),
}
