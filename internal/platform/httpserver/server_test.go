package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	judgingengine "galileo/contexts/competition-core/judging-engine"
	"galileo/contexts/competition-core/judging-engine/domain/entities"
	judginghttp "galileo/contexts/competition-core/judging-engine/transport/http"
)

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, []byte) error { return nil }

func testServer(t *testing.T) (*httptest.Server, judgingengine.Module) {
	t.Helper()
	module := judgingengine.NewInMemoryModule(noopPublisher{}, nil)

	geo := entities.Geography{
		Region:    "Coast",
		County:    "Kilifi",
		SubCounty: "Malindi",
		Zone:      "Central",
		School:    "Takaungu Secondary",
	}
	module.Store.SeedJudge(entities.Judge{
		JudgeID:       "admin-1",
		Name:          "Achieng Odhiambo",
		Role:          entities.RoleSubCountyAdmin,
		WorkGeography: geo,
	})
	module.Store.SeedJudge(entities.Judge{
		JudgeID:       "judge-1",
		Name:          "Juma Mwangi",
		Role:          entities.RoleJudge,
		School:        "Gede Secondary",
		WorkGeography: geo,
	})
	module.Store.SeedProject(entities.Project{
		ProjectID:    "project-1",
		Title:        "Solar Water Purifier",
		Category:     "physics",
		CurrentLevel: entities.LevelSubCounty,
		Geography:    geo,
	})

	server := httptest.NewServer(New(module, nil, "").Handler())
	t.Cleanup(server.Close)
	return server, module
}

func postJSON(t *testing.T, url string, actorID string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request failed: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("build request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if actorID != "" {
		req.Header.Set("X-User-Id", actorID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestAssignEndpointRequiresActorHeader(t *testing.T) {
	server, _ := testServer(t)

	resp := postJSON(t, server.URL+"/api/judging/v1/assignments/assign", "", judginghttp.AssignJudgeRequest{
		JudgeID:  "judge-1",
		Category: "physics",
		Section:  "part_a",
		Level:    "sub_county",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("a missing X-User-Id must yield 401, got %d", resp.StatusCode)
	}
}

func TestAssignEndpointCreatesAssignments(t *testing.T) {
	server, _ := testServer(t)

	resp := postJSON(t, server.URL+"/api/judging/v1/assignments/assign", "admin-1", judginghttp.AssignJudgeRequest{
		JudgeID:  "judge-1",
		Category: "physics",
		Section:  "part_a",
		Level:    "sub_county",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var payload judginghttp.AssignJudgeResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response failed: %v", err)
	}
	if len(payload.AssignmentIDs) != 1 || payload.Role != "judge" {
		t.Fatalf("unexpected assign response: %+v", payload)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	server, _ := testServer(t)
	url := server.URL + "/api/judging/v1/assignments/assign"

	cases := []struct {
		name    string
		actorID string
		request judginghttp.AssignJudgeRequest
		status  int
	}{
		{
			name:    "unknown level fails validation",
			actorID: "admin-1",
			request: judginghttp.AssignJudgeRequest{
				JudgeID: "judge-1", Category: "physics", Section: "part_a", Level: "galaxy",
			},
			status: http.StatusBadRequest,
		},
		{
			name:    "unknown judge is not found",
			actorID: "admin-1",
			request: judginghttp.AssignJudgeRequest{
				JudgeID: "judge-missing", Category: "physics", Section: "part_a", Level: "sub_county",
			},
			status: http.StatusNotFound,
		},
		{
			name:    "non-admin actor breaks an invariant",
			actorID: "judge-1",
			request: judginghttp.AssignJudgeRequest{
				JudgeID: "judge-1", Category: "physics", Section: "part_a", Level: "sub_county",
			},
			status: http.StatusUnprocessableEntity,
		},
	}
	for _, tc := range cases {
		resp := postJSON(t, url, tc.actorID, tc.request)
		var body judginghttp.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("%s: decode error body failed: %v", tc.name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.status {
			t.Fatalf("%s: expected %d, got %d (%+v)", tc.name, tc.status, resp.StatusCode, body)
		}
		if body.Kind == "" || body.Message == "" {
			t.Fatalf("%s: error body must carry kind and message, got %+v", tc.name, body)
		}
	}
}

func TestRankingEndpointReturnsCohort(t *testing.T) {
	server, _ := testServer(t)

	resp, err := http.Get(server.URL + "/api/judging/v1/levels/sub_county/ranking")
	if err != nil {
		t.Fatalf("ranking request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var payload judginghttp.RankingResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode ranking failed: %v", err)
	}
	if payload.Level != "sub_county" || len(payload.Projects) != 1 {
		t.Fatalf("unexpected ranking payload: %+v", payload)
	}
}

func TestUnpublishEndpointMapsPreconditionToConflict(t *testing.T) {
	server, _ := testServer(t)

	resp := postJSON(t, server.URL+"/api/judging/v1/levels/sub_county/unpublish", "admin-1", struct{}{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("unpublishing an unpublished level must yield 409, got %d", resp.StatusCode)
	}
}
