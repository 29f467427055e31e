package parser

import "testing"

func TestJSONParser_Act(t *testing.T) {
	p := NewJSONParser()
	raw := `I will check the weather. {"mode": "act", "actions": [{"name": "add", "args": {"a": 1, "b": 2}}], "rationale": "need sum"}`
	d := p.Parse(raw, []string{"add"})
	if d.Mode != "act" {
		t.Fatalf("expected act mode, got %s", d.Mode)
	}
	if len(d.Actions) != 1 || d.Actions[0].Name != "add" {
		t.Fatalf("unexpected actions: %+v", d.Actions)
	}
	if d.Actions[0].Error != "" {
		t.Fatalf("expected no error, got %q", d.Actions[0].Error)
	}
}

func TestJSONParser_UnknownTool(t *testing.T) {
	p := NewJSONParser()
	raw := `{"mode": "act", "actions": [{"name": "bogus", "args": {}}]}`
	d := p.Parse(raw, []string{"add"})
	if d.Mode != "act" {
		t.Fatalf("mode must remain act, got %s", d.Mode)
	}
	if d.Actions[0].Error == "" {
		t.Fatal("expected unknown-tool error to be set on the action")
	}
}

func TestJSONParser_NestedBraces(t *testing.T) {
	p := NewJSONParser()
	raw := `{"mode": "final", "final_answer": "the value is {weird}"}`
	d := p.Parse(raw, nil)
	if d.Mode != "final" || d.FinalAnswer != "the value is {weird}" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestJSONParser_NoDecisionFallsBackToFinal(t *testing.T) {
	p := NewJSONParser()
	d := p.Parse("I give up, the answer is 42.", nil)
	if d.Mode != "final" {
		t.Fatalf("expected recovery to final mode, got %s", d.Mode)
	}
	if d.FinalAnswer == "" {
		t.Fatal("expected raw text as final answer")
	}
}

func TestReActParser_FinalAnswerFirst(t *testing.T) {
	p := NewReActParser()
	raw := "Thought: done\nAction: add(a=1)\nFinal Answer: 42"
	d := p.Parse(raw, []string{"add"})
	if d.Mode != "final" || d.FinalAnswer != "42" {
		t.Fatalf("expected final mode 42, got %+v", d)
	}
}

func TestReActParser_FunctionInvocation(t *testing.T) {
	p := NewReActParser()
	raw := `Thought: need sum
Action: add(a=1, b=2.5, flag=true, name="bob")`
	d := p.Parse(raw, []string{"add"})
	if d.Mode != "act" || len(d.Actions) != 1 {
		t.Fatalf("unexpected decision: %+v", d)
	}
	a := d.Actions[0]
	if a.Name != "add" {
		t.Fatalf("expected add, got %s", a.Name)
	}
	if a.Args["a"] != int64(1) {
		t.Errorf("expected a=1 (int64), got %#v", a.Args["a"])
	}
	if a.Args["b"] != 2.5 {
		t.Errorf("expected b=2.5, got %#v", a.Args["b"])
	}
	if a.Args["flag"] != true {
		t.Errorf("expected flag=true, got %#v", a.Args["flag"])
	}
	if a.Args["name"] != "bob" {
		t.Errorf("expected name=bob, got %#v", a.Args["name"])
	}
}

func TestReActParser_MissingClosingParenRecovers(t *testing.T) {
	p := NewReActParser()
	raw := "Action: add(a=1, b=2"
	d := p.Parse(raw, []string{"add"})
	if d.Mode != "act" || len(d.Actions) != 1 {
		t.Fatalf("expected recovered act decision, got %+v", d)
	}
	if d.Actions[0].Args["b"] != int64(2) {
		t.Errorf("expected partial args to include b=2, got %#v", d.Actions[0].Args)
	}
}

func TestXMLParser_Action(t *testing.T) {
	p := NewXMLParser()
	raw := "<think>checking</think><action>add(a=3, b=4)</action>"
	d := p.Parse(raw, []string{"add"})
	if d.Mode != "act" || d.Rationale != "checking" {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if d.Actions[0].Args["a"] != int64(3) {
		t.Errorf("unexpected args: %#v", d.Actions[0].Args)
	}
}

func TestXMLParser_FinalAnswer(t *testing.T) {
	p := NewXMLParser()
	raw := "<think>done</think><final_answer>7</final_answer>"
	d := p.Parse(raw, nil)
	if d.Mode != "final" || d.FinalAnswer != "7" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}
