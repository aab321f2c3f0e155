package command

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Registry returns all CLI commands keyed by "service action".
func Registry() map[string]Command {
	commands := []Command{
		{
			Service:      "auth",
			Action:       "register",
			Method:       "POST",
			PathTemplate: "/api/auth/register",
			RequiresAuth: false,
			Fields: []Field{
				{Name: "username", Prompt: "username", Type: FieldString, Required: true},
				{Name: "password", Prompt: "password", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "auth",
			Action:       "login",
			Method:       "POST",
			PathTemplate: "/api/auth/login",
			RequiresAuth: false,
			Fields: []Field{
				{Name: "username", Prompt: "username", Type: FieldString, Required: true},
				{Name: "password", Prompt: "password", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "user",
			Action:       "profile",
			Method:       "GET",
			PathTemplate: "/api/user/profile",
			RequiresAuth: true,
		},
		{
			Service:      "challenge",
			Action:       "list",
			Method:       "GET",
			PathTemplate: "/api/challenges",
			RequiresAuth: false,
		},
		{
			Service:      "challenge",
			Action:       "get",
			Method:       "GET",
			PathTemplate: "/api/challenges/:id",
			RequiresAuth: false,
			Fields: []Field{
				{Name: "id", Prompt: "challenge_id", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "submit",
			Action:       "code",
			Method:       "POST",
			PathTemplate: "/api/submit/code",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "challenge_id", Aliases: []string{"id"}, Prompt: "challenge_id", Type: FieldString, Required: true},
				{Name: "code", Prompt: "code", Type: FieldString, Required: true},
				{Name: "language", Aliases: []string{"lang"}, Prompt: "language", Type: FieldString, Required: false},
				{Name: "code_file", Aliases: []string{"file"}, Prompt: "code_file", Type: FieldFile, Required: false},
			},
		},
		{
			Service:      "submit",
			Action:       "choice",
			Method:       "POST",
			PathTemplate: "/api/submit/multiple-choice",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "challenge_id", Aliases: []string{"id"}, Prompt: "challenge_id", Type: FieldString, Required: true},
				{Name: "answer", Prompt: "answer", Type: FieldString, Required: true},
			},
		},
		{
			Service:      "submit",
			Action:       "history",
			Method:       "GET",
			PathTemplate: "/api/submissions",
			RequiresAuth: true,
			Fields: []Field{
				{Name: "limit", Prompt: "limit", Type: FieldInt, Required: false},
			},
		},
		{
			Service:      "board",
			Action:       "top",
			Method:       "GET",
			PathTemplate: "/api/leaderboard",
			RequiresAuth: false,
		},
		{
			Service:      "board",
			Action:       "me",
			Method:       "GET",
			PathTemplate: "/api/leaderboard/me",
			RequiresAuth: true,
		},
	}

	result := make(map[string]Command, len(commands))
	for _, cmd := range commands {
		key := fmt.Sprintf("%s %s", cmd.Service, cmd.Action)
		result[key] = cmd
	}
	return result
}

// BuildRequest creates the HTTP request spec for a command.
func BuildRequest(cmd Command, params Params) (RequestSpec, error) {
	params.Canonicalize(cmd.Fields)
	path, err := buildPath(cmd.PathTemplate, params)
	if err != nil {
		return RequestSpec{}, err
	}

	var body []byte
	if cmd.Method == "GET" {
		path = appendQuery(path, cmd, params)
	} else {
		payload, err := buildPayload(cmd, params)
		if err != nil {
			return RequestSpec{}, err
		}
		if payload != nil {
			body, err = json.Marshal(payload)
			if err != nil {
				return RequestSpec{}, fmt.Errorf("marshal request body failed: %w", err)
			}
		}
	}

	return RequestSpec{
		Method: cmd.Method,
		Path:   path,
		Body:   body,
	}, nil
}

func buildPath(template string, params Params) (string, error) {
	path := template
	if strings.Contains(path, ":id") {
		value := params.Get("id")
		if value == "" {
			return "", fmt.Errorf("missing path parameter: id")
		}
		path = strings.ReplaceAll(path, ":id", url.PathEscape(value))
	}
	return path, nil
}

func appendQuery(path string, cmd Command, params Params) string {
	query := url.Values{}
	for _, field := range cmd.Fields {
		if strings.Contains(cmd.PathTemplate, ":"+field.Name) {
			continue
		}
		if value := params.Get(field.Name); value != "" {
			query.Set(field.Name, value)
		}
	}
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}

func buildPayload(cmd Command, params Params) (interface{}, error) {
	switch cmd.Service {
	case "auth":
		return map[string]string{
			"username": params.Get("username"),
			"password": params.Get("password"),
		}, nil
	case "submit":
		switch cmd.Action {
		case "code":
			return buildSubmitCodePayload(params)
		case "choice":
			return map[string]string{
				"challenge_id": params.Get("challenge_id"),
				"answer":       params.Get("answer"),
			}, nil
		}
	}
	return nil, nil
}

func buildSubmitCodePayload(params Params) (interface{}, error) {
	code := params.Get("code")
	if (code == "" || code == "_file_") && params.Get("code_file") != "" {
		var err error
		code, err = ReadFile(params.Get("code_file"))
		if err != nil {
			return nil, err
		}
	}
	if code == "" {
		return nil, fmt.Errorf("code is required")
	}

	payload := map[string]string{
		"challenge_id": params.Get("challenge_id"),
		"code":         code,
	}
	if params.Get("language") != "" {
		payload["language"] = params.Get("language")
	}
	return payload, nil
}
