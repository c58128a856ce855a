package service_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scoreboard/internal/adapters/http/api"
	"github.com/okian/scoreboard/internal/adapters/ws"
	service "github.com/okian/scoreboard/internal/app"
	"github.com/okian/scoreboard/internal/board"
	"github.com/okian/scoreboard/internal/domain/contest"
	"github.com/okian/scoreboard/internal/domain/types"
)

var contestStart = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type env struct {
	ctx   context.Context
	clock *clockwork.FakeClock
	svc   *service.Service
	srv   *httptest.Server
}

func newEnv() *env {
	e := &env{
		ctx:   context.Background(),
		clock: clockwork.NewFakeClockAt(contestStart.Add(time.Hour)),
	}
	e.svc = service.New(
		service.WithClock(e.clock),
		service.WithContest(types.ContestTime{StartTime: contestStart, Duration: 300}),
	)
	mux := http.NewServeMux()
	api.NewServer(e.svc, e.svc, 3).Register(e.ctx, mux)
	mux.Handle("/ws", e.svc.Hub())
	e.srv = httptest.NewServer(mux)
	So(e.svc.Start(e.ctx), ShouldBeNil)
	return e
}

func (e *env) close() {
	e.svc.Stop()
	e.srv.Close()
}

func (e *env) post(names ...string) map[string]any {
	rows := make([]string, len(names))
	for i, n := range names {
		rows[i] = fmt.Sprintf(`{"rank":"%d","teamName":%q,"score":"%d","penalty":"%d","problems":[]}`,
			i+1, n, len(names)-i, 20*i)
	}
	resp, err := http.Post(e.srv.URL+"/api/postRanking", "application/json",
		strings.NewReader(`{"data":[`+strings.Join(rows, ",")+`]}`))
	So(err, ShouldBeNil)
	defer resp.Body.Close()
	So(resp.StatusCode, ShouldEqual, http.StatusOK)
	var out map[string]any
	So(json.NewDecoder(resp.Body).Decode(&out), ShouldBeNil)
	return out
}

func (e *env) view() board.Projection {
	v, err := e.svc.View(e.ctx, 0)
	So(err, ShouldBeNil)
	return v
}

// eventually polls cond on the board until it holds or a second passes.
func (e *env) eventually(cond func(board.Projection) bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond(e.view()) {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func leader(id string) func(board.Projection) bool {
	return func(p board.Projection) bool {
		return len(p.Teams) > 0 && p.Teams[0].ID == id
	}
}

func TestService_EndToEnd(t *testing.T) {
	Convey("Given a running service in the middle of the contest", t, func() {
		e := newEnv()
		defer e.close()

		So(e.view().Phase, ShouldEqual, contest.PhaseDuring)
		So(e.view().Label, ShouldEqual, "Ends in")
		So(e.view().Countdown, ShouldEqual, "04:00:00")

		Convey("The first post is shown without animation", func() {
			So(e.post("Alpha", "Bravo", "Charlie")["version"], ShouldEqual, 1)
			So(e.eventually(leader("team_Alpha")), ShouldBeTrue)
			So(e.view().IsEmergency, ShouldBeFalse)

			Convey("A leader change runs the emergency sequence", func() {
				e.post("Bravo", "Alpha", "Charlie")
				So(e.eventually(func(p board.Projection) bool { return p.IsEmergency }), ShouldBeTrue)

				v := e.view()
				So(v.DroppingTeamID, ShouldEqual, "team_Alpha")
				So(v.Teams[0].ID, ShouldEqual, "team_Alpha")

				e.clock.Advance(1200 * time.Millisecond)
				So(e.eventually(func(p board.Projection) bool {
					return p.IsEmergency && p.DroppingTeamID == "" && p.Teams[0].ID == "team_Bravo"
				}), ShouldBeTrue)

				e.clock.Advance(2200 * time.Millisecond)
				So(e.eventually(func(p board.Projection) bool { return !p.IsEmergency }), ShouldBeTrue)
			})

			Convey("A duplicate post changes nothing", func() {
				So(e.post("Alpha", "Bravo", "Charlie")["message"], ShouldEqual, "Buffer unchanged")
				snap, _ := e.svc.Latest(e.ctx)
				So(snap.Version, ShouldEqual, 1)
			})

			Convey("The end of the contest tears delivery down", func() {
				e.clock.Advance(5 * time.Hour)
				So(e.eventually(func(p board.Projection) bool { return p.Ended }), ShouldBeTrue)
				So(e.view().Label, ShouldEqual, "Contest ended")
				So(e.svc.GetStats()["queueClosed"], ShouldBeTrue)

				Convey("and the relay keeps serving raw data", func() {
					So(e.post("Charlie", "Bravo", "Alpha")["version"], ShouldEqual, 2)
					time.Sleep(20 * time.Millisecond)
					So(e.view().Teams[0].ID, ShouldEqual, "team_Alpha")
				})
			})
		})

		Convey("Moving the contest window reaches the board", func() {
			resp, err := http.Post(e.srv.URL+"/api/postContestTime", "application/json",
				strings.NewReader(`{"startTime":"2025-03-01T12:00:00Z","duration":60}`))
			So(err, ShouldBeNil)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			v := e.view()
			So(v.Phase, ShouldEqual, contest.PhaseBefore)
			So(v.Label, ShouldEqual, "Starts in")
			So(v.Countdown, ShouldEqual, "02:00:00")
		})

		Convey("A viewer joining the room gets the snapshot and then the board", func() {
			e.post("Alpha", "Bravo")
			So(e.eventually(leader("team_Alpha")), ShouldBeTrue)

			url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
			conn, _, err := websocket.DefaultDialer.Dial(url, nil)
			So(err, ShouldBeNil)
			defer conn.Close()
			So(conn.WriteJSON(map[string]string{"type": ws.TypeJoinRoom, "room": ws.RoomScoreboard}), ShouldBeNil)

			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
			var first, second struct {
				Type string          `json:"type"`
				Data json.RawMessage `json:"data"`
			}
			So(conn.ReadJSON(&first), ShouldBeNil)
			So(first.Type, ShouldEqual, ws.TypeSendData)
			var snap types.Snapshot
			So(json.Unmarshal(first.Data, &snap), ShouldBeNil)
			So(snap.Version, ShouldEqual, 1)

			So(conn.ReadJSON(&second), ShouldBeNil)
			So(second.Type, ShouldEqual, ws.TypeBoardState)

			Convey("and later posts are pushed", func() {
				e.post("Bravo", "Alpha")
				var next struct {
					Type string `json:"type"`
				}
				for next.Type != ws.TypeSendData {
					So(conn.ReadJSON(&next), ShouldBeNil)
				}
			})
		})
	})
}
