package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Result 记录单次请求的 HTTP 结果，便于聚合统计。
type Result struct {
	Status int
	Code   int
	Err    error
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type identity struct {
	ID   int64
	Role string
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	consumerID := flag.Int64("consumer", 7, "consumer user id")
	supplierID := flag.Int64("supplier", 3, "supplier id")
	linkID := flag.Uint("link", 0, "reuse an approved link instead of creating one")

	// 并发竞争测试：同一订单上 n 个 accept/reject 同时提交，最多一个成功
	n := flag.Int("n", 50, "concurrent transition requests")
	concurrency := flag.Int("c", 50, "max concurrency")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}
	consumer := identity{ID: *consumerID, Role: "consumer"}
	manager := identity{ID: 9000, Role: "manager"}

	if *linkID == 0 {
		id, err := createLink(client, *baseURL, consumer, manager, *supplierID)
		if err != nil {
			panic(fmt.Sprintf("prepare link failed: %v", err))
		}
		*linkID = id
		fmt.Println("link approved:", id)
	}

	var order struct {
		ID uint `json:"id"`
	}
	if err := call(client, http.MethodPost, *baseURL+"/api/orders", consumer,
		map[string]any{"link_id": *linkID, "total_amount": 120.50}, &order); err != nil {
		panic(fmt.Sprintf("create order failed: %v", err))
	}
	fmt.Printf("start race: order=%d requests=%d concurrency=%d\n", order.ID, *n, *concurrency)

	results := runRace(client, *baseURL, order.ID, *n, *concurrency)
	printSummary("race", results)

	var final struct {
		Status  string `json:"status"`
		Version int64  `json:"version"`
	}
	if err := call(client, http.MethodGet, fmt.Sprintf("%s/api/orders/%d", *baseURL, order.ID), manager, nil, &final); err != nil {
		fmt.Println("final check err:", err)
		return
	}
	fmt.Printf("final order status=%s version=%d\n", final.Status, final.Version)
}

// createLink 以采购方身份申请合作，再由管理员审批。
func createLink(client *http.Client, baseURL string, consumer, manager identity, supplierID int64) (uint, error) {
	var link struct {
		ID uint `json:"id"`
	}
	if err := call(client, http.MethodPost, baseURL+"/api/links", consumer, map[string]any{"supplier_id": supplierID}, &link); err != nil {
		return 0, err
	}
	url := fmt.Sprintf("%s/api/links/%d/approve", baseURL, link.ID)
	if err := call(client, http.MethodPost, url, manager, nil, nil); err != nil {
		return 0, err
	}
	return link.ID, nil
}

// runRace 奇数请求 accept、偶数请求 reject；每个请求使用不同的销售身份，避免触发按用户限流。
func runRace(client *http.Client, baseURL string, orderID uint, total, concurrency int) []Result {
	sem := make(chan struct{}, concurrency)
	start := make(chan struct{})
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			sem <- struct{}{}
			defer func() { <-sem }()

			who := identity{ID: int64(10000 + idx), Role: "sales_representative"}
			url := fmt.Sprintf("%s/api/orders/%d/accept", baseURL, orderID)
			var body any
			if idx%2 == 0 {
				url = fmt.Sprintf("%s/api/orders/%d/reject", baseURL, orderID)
				body = map[string]string{"rejection_reason": "concurrent reject"}
			}
			results[idx] = transitionOnce(client, url, who, body)
		}(i)
	}
	close(start)
	wg.Wait()
	return results
}

func transitionOnce(client *http.Client, url string, who identity, body any) Result {
	resp, err := send(client, http.MethodPost, url, who, body)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	var env envelope
	b, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(b, &env)
	return Result{Status: resp.StatusCode, Code: env.Code}
}

// printSummary 聚合输出不同业务码分布：0 成功，4090 并发冲突，4091 非法迁移。
func printSummary(name string, results []Result) {
	count := map[string]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[fmt.Sprintf("%d/%d", r.Status, r.Code)]++
	}
	keys := make([]string, 0, len(count))
	for k := range count {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("[%s] status/code summary:\n", name)
	for _, k := range keys {
		fmt.Printf("  %s -> %d\n", k, count[k])
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
	if count["200/0"] != 1 {
		fmt.Printf("  WARNING: expected exactly one success, got %d\n", count["200/0"])
	}
}

func send(client *http.Client, method, url string, who identity, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-ID", fmt.Sprint(who.ID))
	req.Header.Set("X-User-Role", who.Role)
	return client.Do(req)
}

// call 发送请求并把 data 解码到 out（可为 nil）。
func call(client *http.Client, method, url string, who identity, body, out any) error {
	resp, err := send(client, method, url, who, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	return json.Unmarshal(env.Data, out)
}
