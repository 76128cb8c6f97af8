package domain

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParserParsesPlainPayload(t *testing.T) {
	p := NewParser(zerolog.Nop())
	payload, err := json.Marshal(validEvent())
	if err != nil {
		t.Fatalf("序列化测试事件失败: %v", err)
	}

	event, ok := p.Parse(payload)
	if !ok {
		t.Fatal("合法消息应被解析")
	}
	if event.Pair != "EUR/USD" || event.Seq != 1 {
		t.Fatalf("解析结果不正确: %+v", event)
	}
	if event.BidPips != 108450 || event.AskPips != 108470 {
		t.Fatalf("pips 不正确: %+v", event)
	}
}

func TestParserUnwrapsDoubleEncodedPayload(t *testing.T) {
	p := NewParser(zerolog.Nop())
	inner, err := json.Marshal(validEvent())
	if err != nil {
		t.Fatalf("序列化测试事件失败: %v", err)
	}
	wrapped, err := json.Marshal(string(inner))
	if err != nil {
		t.Fatalf("二次序列化失败: %v", err)
	}

	event, ok := p.Parse(wrapped)
	if !ok {
		t.Fatal("双重编码的消息应被解包后解析")
	}
	if event.EventKey != "ratehub:test:EUR/USD:1" {
		t.Fatalf("eventKey 不正确: %q", event.EventKey)
	}
}

func TestParserRejectsMalformedPayloads(t *testing.T) {
	p := NewParser(zerolog.Nop())
	cases := map[string]string{
		"empty":       "",
		"not json":    "not-json",
		"json array":  `[1,2,3]`,
		"null field":  `{"eventKey":null,"schemaVersion":1,"producedAt":"2026-01-01T00:00:00Z","source":"s","pair":"EUR/USD","seq":1,"bidPips":1,"askPips":2}`,
		"missing seq": `{"eventKey":"k","schemaVersion":1,"producedAt":"2026-01-01T00:00:00Z","source":"s","pair":"EUR/USD","bidPips":1,"askPips":2}`,
		"wrong types": `{"eventKey":"k","schemaVersion":1,"producedAt":"2026-01-01T00:00:00Z","source":"s","pair":"EUR/USD","seq":"one","bidPips":1,"askPips":2}`,
		"bare string": `"just a string"`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			if _, ok := p.Parse([]byte(payload)); ok {
				t.Fatalf("非法消息不应被解析: %q", payload)
			}
		})
	}
}
