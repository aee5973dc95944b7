package api

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const (
	idSchema     = `{"type": ["string", "integer"]}`
	amountSchema = `{"type": ["number", "string"]}`
	levelSchema  = `{"enum": ["BEGINNER", "INTERMEDIATE", "ADVANCED"]}`
	goalSchema   = `{"enum": ["LEARNING", "INVESTING"]}`
)

var (
	userSchema = `{
		"type": "object",
		"required": ["email"],
		"properties": {
			"id": ` + idSchema + `,
			"email": {"type": "string", "minLength": 1},
			"name": {"type": ["string", "null"]},
			"literacyLevel": ` + levelSchema + `,
			"primaryGoal": ` + goalSchema + `
		}
	}`

	authSchema = `{
		"type": "object",
		"required": ["token", "user"],
		"properties": {
			"token": {"type": "string", "minLength": 1},
			"user": ` + userSchema + `
		}
	}`

	pathSchema = `{
		"type": "object",
		"required": ["id", "title", "level", "modules"],
		"properties": {
			"id": ` + idSchema + `,
			"title": {"type": "string"},
			"description": {"type": ["string", "null"]},
			"level": ` + levelSchema + `,
			"modules": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["id", "title"],
					"properties": {
						"id": ` + idSchema + `,
						"title": {"type": "string"},
						"order": {"type": "integer"}
					}
				}
			}
		}
	}`

	moduleSchema = `{
		"type": "object",
		"required": ["id", "title", "content", "quizQuestions"],
		"properties": {
			"id": ` + idSchema + `,
			"title": {"type": "string"},
			"content": {"type": "string"},
			"videoUrl": {"type": ["string", "null"]},
			"quizQuestions": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["question", "options"],
					"properties": {
						"question": {"type": "string"},
						"options": {"type": "array", "minItems": 1, "items": {"type": "string"}}
					}
				}
			}
		}
	}`

	quizResultSchema = `{
		"type": "object",
		"required": ["score", "passed"],
		"properties": {
			"score": {"type": "number"},
			"correctAnswers": {"type": "integer", "minimum": 0},
			"totalQuestions": {"type": "integer", "minimum": 0},
			"passed": {"type": "boolean"}
		}
	}`

	investmentSchema = `{
		"type": "object",
		"required": ["id", "title", "amountRequested", "amountRaised"],
		"properties": {
			"id": ` + idSchema + `,
			"title": {"type": "string"},
			"description": {"type": ["string", "null"]},
			"amountRequested": ` + amountSchema + `,
			"amountRaised": ` + amountSchema + `,
			"returnRate": {"type": "number"},
			"duration": {"type": ["string", "null"]},
			"riskLevel": {"type": ["string", "null"]},
			"category": {"type": ["string", "null"]}
		}
	}`

	progressSchema = `{
		"type": "object",
		"properties": {
			"completedModules": {"type": "integer", "minimum": 0},
			"quizzesTaken": {"type": "integer", "minimum": 0},
			"averageScore": {"type": "number"},
			"streak": {"type": "integer", "minimum": 0},
			"overallProgress": {"type": "number"},
			"progress": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["moduleId", "completed"],
					"properties": {
						"moduleId": ` + idSchema + `,
						"completed": {"type": "boolean"},
						"quizScore": {"type": ["number", "null"]}
					}
				}
			}
		}
	}`
)

func arrayOf(item string) string {
	return `{"type": "array", "items": ` + item + `}`
}

// Endpoint names, used for schema lookup, error ops and metric labels.
const (
	opLogin          = "login"
	opRegister       = "register"
	opPaths          = "learning_paths"
	opModule         = "module"
	opQuiz           = "submit_quiz"
	opInvestments    = "investments"
	opInvestment     = "investment"
	opProgress       = "progress"
	opUpdatePassword = "update_profile"
)

// schemaSet holds the compiled response schema for each endpoint.
type schemaSet map[string]*gojsonschema.Schema

func compileSchemas() (schemaSet, error) {
	sources := map[string]string{
		opLogin:       authSchema,
		opRegister:    authSchema,
		opPaths:       arrayOf(pathSchema),
		opModule:      moduleSchema,
		opQuiz:        quizResultSchema,
		opInvestments: arrayOf(investmentSchema),
		opInvestment:  investmentSchema,
		opProgress:    progressSchema,
	}

	set := make(schemaSet, len(sources))
	for op, src := range sources {
		s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", op, err)
		}
		set[op] = s
	}
	return set, nil
}

// mustCompileSchemas panics on a broken built-in schema.
func mustCompileSchemas() schemaSet {
	set, err := compileSchemas()
	if err != nil {
		panic(err)
	}
	return set
}

// validate checks body against the schema for op. Endpoints without a schema
// always pass.
func (s schemaSet) validate(op string, body []byte) error {
	schema, ok := s[op]
	if !ok {
		return nil
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Errorf("response does not match schema: %s", strings.Join(problems, "; "))
}
