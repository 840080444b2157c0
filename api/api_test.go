package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hermeznetwork/forge-node/apitypes"
	"github.com/hermeznetwork/forge-node/auth"
	"github.com/hermeznetwork/forge-node/clock"
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/db"
	"github.com/hermeznetwork/forge-node/db/historydb"
	"github.com/hermeznetwork/forge-node/db/statedb"
	"github.com/hermeznetwork/forge-node/engine"
	"github.com/hermeznetwork/forge-node/ledger"
	"github.com/hermeznetwork/forge-node/log"
	"github.com/hermeznetwork/forge-node/test"
)

type fixedRandomness byte

func (r fixedRandomness) SeedByte(uint64) byte { return byte(r) }

type testCommon struct {
	engine     *engine.Engine
	stateDB    *statedb.StateDB
	historyDB  *historydb.HistoryDB
	ledger     *ledger.KVLedger
	users      map[string]*test.User
	market     *test.Market
	governance common.Identity
	proposal   common.Identity
	smeltHash  string
	nonce      uint64
}

var tc testCommon
var baseURL, apiURL string

func (tc *testCommon) op(inst common.Instruction, signer *test.User, accounts ...common.Identity) *common.Operation {
	data, err := inst.Bytes()
	if err != nil {
		panic(err)
	}
	tc.nonce++
	op := test.NewOperation(data, tc.nonce, accounts...)
	if signer != nil {
		test.SignOperation(op, signer)
	}
	return op
}

func (tc *testCommon) smeltOp(u *test.User, ore, coal uint64) *common.Operation {
	m := tc.market
	return tc.op(common.Instruction{Tag: common.TagSmelt, Amount: ore, CoalAmount: coal}, u,
		m.ID, u.ID, u.TokenAccount(m.OreMint), u.TokenAccount(m.CoalMint), u.TokenAccount(m.IngotMint))
}

// seed executes the operations every test relies on: the market, one
// smelt, a governance and an open proposal
func (tc *testCommon) seed() error {
	owner, alice, bob, carol := tc.users["owner"], tc.users["alice"], tc.users["bob"], tc.users["carol"]
	m := tc.market
	cooldown := int64(60)
	ops := []*common.Operation{
		tc.op(common.Instruction{
			Tag:    common.TagInitialize,
			Params: common.MarketParams{SuccessRate: 80, MinimumCoalAmount: 10},
		}, owner, m.ID, m.Authority, m.OreMint, m.IngotMint, m.CoalMint, m.OreVault),
		tc.smeltOp(alice, 1000, 100),
		tc.op(common.Instruction{
			Tag:       common.TagInitializeGovernance,
			Threshold: 2,
			Signers:   []common.Identity{alice.ID, bob.ID, carol.ID},
		}, owner, m.ID, owner.ID, tc.governance),
		tc.op(common.Instruction{
			Tag:    common.TagPropose,
			Update: common.ParamsUpdate{CooldownPeriod: &cooldown},
		}, alice, tc.governance, alice.ID),
	}
	for i, op := range ops {
		res, err := tc.engine.Execute(op)
		if err != nil {
			return fmt.Errorf("seed operation %d: %w", i, err)
		}
		if i == 1 {
			tc.smeltHash = res.Hash.Hex()
		}
	}
	return nil
}

func TestMain(m *testing.M) {
	log.Init("debug", "")
	sqlDB, dir, err := test.InitTestSQLDB()
	if err != nil {
		panic(err)
	}
	test.WipeDB(sqlDB)
	hdb := historydb.NewHistoryDB(sqlDB, db.NewAPIConnectionController(2, time.Second))
	sdb, err := statedb.NewStateDB(statedb.Config{Type: statedb.TypeMemory})
	if err != nil {
		panic(err)
	}
	kv := ledger.NewKVLedger(sdb, 1000)
	users := test.GenerateUsers([]string{"owner", "alice", "bob", "carol"})
	market, err := test.NewMarket(kv, "iron", users["owner"].ID, 6, 6, 6)
	if err != nil {
		panic(err)
	}
	if err := market.FundUser(kv, users["alice"], 1_000_000, 1_000_000, test.NativeBalance); err != nil {
		panic(err)
	}
	eng := engine.NewEngine(engine.Config{}, sdb, hdb, kv, auth.BJJAuthenticator{},
		clock.NewManual(1000, 1), fixedRandomness(0))
	tc = testCommon{
		engine:     eng,
		stateDB:    sdb,
		historyDB:  hdb,
		ledger:     kv,
		users:      users,
		market:     market,
		governance: test.Identity("gov/iron"),
	}
	if err := tc.seed(); err != nil {
		panic(err)
	}
	tc.proposal, err = common.ProposalID(tc.governance, 0)
	if err != nil {
		panic(err)
	}

	gin.SetMode(gin.TestMode)
	server := gin.New()
	if _, err := NewAPI(server, eng, hdb, kv, Config{Version: "test"}); err != nil {
		panic(err)
	}
	httpServer := httptest.NewServer(server)
	baseURL = httpServer.URL
	apiURL = baseURL + "/v1/"

	result := m.Run()

	httpServer.Close()
	sdb.Close()
	if err := sqlDB.Close(); err != nil {
		panic(err)
	}
	if dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			panic(err)
		}
	}
	os.Exit(result)
}

func doReq(method, path string, reqBody io.Reader) (int, []byte, error) {
	httpReq, err := http.NewRequest(method, path, reqBody)
	if err != nil {
		return 0, nil, err
	}
	if reqBody != nil {
		httpReq.Header.Add("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	//nolint
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func doGoodReq(method, path string, reqBody io.Reader, returnStruct interface{}) error {
	status, body, err := doReq(method, path, reqBody)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%d response. Body: %s", status, string(body))
	}
	if returnStruct == nil {
		return nil
	}
	if err := json.Unmarshal(body, returnStruct); err != nil {
		log.Error("invalid json: " + string(body))
		return err
	}
	return nil
}

func doBadReq(method, path string, reqBody io.Reader, expectedResponseCode int) (*apitypes.ErrorResponse, error) {
	status, body, err := doReq(method, path, reqBody)
	if err != nil {
		return nil, err
	}
	if status != expectedResponseCode {
		return nil, fmt.Errorf("Unexpected response code: %d. Body: %s", status, string(body))
	}
	var errResp apitypes.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		return nil, err
	}
	return &errResp, nil
}

func doSimpleReq(method, endpoint string) (string, error) {
	_, body, err := doReq(method, endpoint, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func jsonBody(v interface{}) io.Reader {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return bytes.NewReader(b)
}

func newRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
