package query

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/filereduce/filereduce/internal/model"
	ferrors "github.com/filereduce/filereduce/pkg/errors"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"qty > 10", []string{"qty", ">", "10"}},
		{"qty>=10", []string{"qty", ">=", "10"}},
		{"sku IN ('A','B')", []string{"sku", "IN", "(", "'A'", ",", "'B'", ")"}},
		{"(a = 1)", []string{"(", "a", "=", "1", ")"}},
		{"qty>50", []string{"qty", ">", "50"}},
		{"qty<5", []string{"qty", "<", "5"}},
		{"a=1 OR b=2 AND c=3", []string{"a", "=", "1", "OR", "b", "=", "2", "AND", "c", "=", "3"}},
		{"sku!='A'", []string{"sku", "!=", "'A'"}},
		{"  ", nil},
	}

	for _, tt := range tests {
		got := Tokenize(tt.input)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Tokenize(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseExpr_Precedence(t *testing.T) {
	for _, input := range []string{"a=1 OR b=2 AND c=3", "a = 1 OR b = 2 AND c = 3"} {
		e, err := ParseExpr(input)
		if err != nil {
			t.Fatalf("ParseExpr(%q) failed: %v", input, err)
		}

		or, ok := e.(*Or)
		if !ok {
			t.Fatalf("%q: expected Or at root, got %T", input, e)
		}
		if _, ok := or.Right.(*And); !ok {
			t.Errorf("%q: expected AND to bind tighter than OR, got %s", input, e)
		}
	}
}

func TestParseExpr_Unspaced(t *testing.T) {
	tests := []struct {
		input string
		want  Expr
	}{
		{"qty>50", &Gt{Field: "qty", Value: model.Number(50)}},
		{"qty<50", &Lt{Field: "qty", Value: model.Number(50)}},
		{"qty>=50", &Gte{Field: "qty", Value: model.Number(50)}},
		{"sku='A'", &Eq{Field: "sku", Value: model.Text("A")}},
	}
	for _, tt := range tests {
		got, err := ParseExpr(tt.input)
		if err != nil {
			t.Errorf("ParseExpr(%q) failed: %v", tt.input, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseExpr(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestParseExpr_Parentheses(t *testing.T) {
	e, err := ParseExpr("(a = 1 OR b = 2) AND c = 3")
	if err != nil {
		t.Fatalf("ParseExpr failed: %v", err)
	}

	and, ok := e.(*And)
	if !ok {
		t.Fatalf("Expected And at root, got %T", e)
	}
	if _, ok := and.Left.(*Or); !ok {
		t.Errorf("Expected grouped Or on the left, got %T", and.Left)
	}
}

func TestParseExpr_Not(t *testing.T) {
	e, err := ParseExpr("NOT qty > 5 AND sku = 'X'")
	if err != nil {
		t.Fatalf("ParseExpr failed: %v", err)
	}

	and, ok := e.(*And)
	if !ok {
		t.Fatalf("Expected And at root, got %T", e)
	}
	if _, ok := and.Left.(*Not); !ok {
		t.Errorf("Expected NOT to bind tighter than AND, got %T", and.Left)
	}
}

func TestParseExpr_Factors(t *testing.T) {
	tests := []struct {
		input string
		want  Expr
	}{
		{"qty = 5", &Eq{Field: "qty", Value: model.Number(5)}},
		{"sku = 'ABC'", &Eq{Field: "sku", Value: model.Text("ABC")}},
		{"qty > 5", &Gt{Field: "qty", Value: model.Number(5)}},
		{"qty < -1.5", &Lt{Field: "qty", Value: model.Number(-1.5)}},
		{"qty >= 5", &Gte{Field: "qty", Value: model.Number(5)}},
		{"qty <= 5", &Lte{Field: "qty", Value: model.Number(5)}},
		{"qty BETWEEN 1 AND 10", &Between{Field: "qty", Lo: model.Number(1), Hi: model.Number(10)}},
		{"KIND = 'LIN'", &KindEq{Kind: model.RowLIN}},
		{"sku IN ('A', 'B')", &In{Field: "sku", Values: []model.Value{model.Text("A"), model.Text("B")}}},
		{"qty IN (1, 2,)", &In{Field: "qty", Values: []model.Value{model.Number(1), model.Number(2)}}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseExpr(tt.input)
			if err != nil {
				t.Fatalf("ParseExpr failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseExpr_Like(t *testing.T) {
	e, err := ParseExpr("sku LIKE 'AB%'")
	if err != nil {
		t.Fatalf("ParseExpr failed: %v", err)
	}

	like, ok := e.(*Like)
	if !ok {
		t.Fatalf("Expected Like, got %T", e)
	}
	if like.Field != "sku" || like.Pattern != "AB%" {
		t.Errorf("Unexpected like: %+v", like)
	}

	re := like.Regexp()
	for _, s := range []string{"AB", "ABC", "AB.X"} {
		if !re.MatchString(s) {
			t.Errorf("Expected %q to match AB%%", s)
		}
	}
	if re.MatchString("XAB") {
		t.Error("Expected pattern to be anchored")
	}
}

func TestLikeRegexp_EscapesMeta(t *testing.T) {
	re := NewLike("f", "a.b_c").Regexp()
	if !re.MatchString("a.bXc") {
		t.Error("Expected _ to match one character")
	}
	if re.MatchString("aXbXc") {
		t.Error("Expected . to match literally")
	}
}

func TestParseExpr_RoundTrip(t *testing.T) {
	inputs := []string{
		"qty > 5",
		"( sku LIKE 'A%' AND NOT qty BETWEEN 1 AND 3 )",
		"( KIND = 'LIN' OR sku IN ( 'A' , 'B' ) )",
	}

	for _, input := range inputs {
		e, err := ParseExpr(input)
		if err != nil {
			t.Fatalf("ParseExpr(%q) failed: %v", input, err)
		}
		again, err := ParseExpr(e.String())
		if err != nil {
			t.Fatalf("ParseExpr(%q) failed: %v", e.String(), err)
		}
		if again.String() != e.String() {
			t.Errorf("Round trip mismatch: %q vs %q", e.String(), again.String())
		}
	}
}

func TestParseExpr_Errors(t *testing.T) {
	tests := []struct {
		input string
		code  ferrors.Code
		cause error
	}{
		{"", ferrors.CodeQuerySyntax, ErrUnexpectedEOF},
		{"qty >", ferrors.CodeQuerySyntax, ErrUnexpectedEOF},
		{"qty > abc", ferrors.CodeInvalidLiteral, ErrInvalidNumber},
		{"qty != 5", ferrors.CodeUnsupportedOperator, ErrUnsupportedOperator},
		{"qty ~ 5", ferrors.CodeUnsupportedOperator, ErrUnsupportedOperator},
		{"sku LIKE ABC", ferrors.CodeQuerySyntax, ErrUnexpectedToken},
		{"(qty > 5", ferrors.CodeQuerySyntax, ErrUnexpectedEOF},
		{"qty BETWEEN 1 OR 2", ferrors.CodeQuerySyntax, ErrUnexpectedToken},
		{"qty > 5 sku", ferrors.CodeQuerySyntax, ErrUnexpectedToken},
		{"KIND = 'XYZ'", ferrors.CodeQuerySyntax, ErrUnexpectedToken},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseExpr(tt.input)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !ferrors.IsCode(err, tt.code) {
				t.Errorf("Expected code %s, got %s", tt.code, ferrors.GetCode(err))
			}
			if !errors.Is(err, tt.cause) {
				t.Errorf("Expected cause %v, got %v", tt.cause, err)
			}
			if !ferrors.IsParse(err) {
				t.Error("Expected a parse error")
			}
		})
	}
}

func TestParseQuery_BareExpression(t *testing.T) {
	q, err := ParseQuery("qty > 5")
	if err != nil {
		t.Fatalf("ParseQuery failed: %v", err)
	}
	if q.Filter == nil || q.Select != nil || q.Limit != nil || q.OrderBy != nil {
		t.Errorf("Unexpected query: %+v", q)
	}
}

func TestParseQuery_Select(t *testing.T) {
	q, err := ParseQuery("SELECT sku, qty WHERE qty > 5 ORDER BY qty DESC LIMIT 3")
	if err != nil {
		t.Fatalf("ParseQuery failed: %v", err)
	}

	if !reflect.DeepEqual(q.Select, []string{"sku", "qty"}) {
		t.Errorf("Select = %v", q.Select)
	}
	if q.Filter == nil || q.Filter.String() != "qty > 5" {
		t.Errorf("Filter = %v", q.Filter)
	}
	if q.OrderBy == nil || q.OrderBy.Field != "qty" || q.OrderBy.Order != Desc {
		t.Errorf("OrderBy = %+v", q.OrderBy)
	}
	if q.Limit == nil || *q.Limit != 3 {
		t.Errorf("Limit = %v", q.Limit)
	}
}

func TestParseQuery_Star(t *testing.T) {
	q, err := ParseQuery("SELECT * ORDER BY sku")
	if err != nil {
		t.Fatalf("ParseQuery failed: %v", err)
	}
	if q.Select != nil || q.Filter != nil {
		t.Errorf("Unexpected query: %+v", q)
	}
	if q.OrderBy == nil || q.OrderBy.Order != Asc {
		t.Errorf("Expected ascending order, got %+v", q.OrderBy)
	}
}

func TestParseQuery_Aggregates(t *testing.T) {
	q, err := ParseQuery("SELECT COUNT(*), SUM(qty), MAX(amount) WHERE KIND = 'LIN'")
	if err != nil {
		t.Fatalf("ParseQuery failed: %v", err)
	}

	want := []Aggregate{Count("*"), Sum("qty"), Max("amount")}
	if !reflect.DeepEqual(q.Aggregates, want) {
		t.Errorf("Aggregates = %v, want %v", q.Aggregates, want)
	}
	if !q.HasAggregates() {
		t.Error("Expected aggregate mode")
	}
}

func TestParseQuery_Errors(t *testing.T) {
	inputs := []string{
		"SELECT sku, COUNT(*)",
		"SELECT SUM(*)",
		"SELECT * LIMIT x",
		"SELECT * ORDER qty",
		"SELECT * WHERE qty > 1 extra",
	}

	for _, input := range inputs {
		if _, err := ParseQuery(input); err == nil {
			t.Errorf("ParseQuery(%q): expected error", input)
		}
	}
}

func TestLike_ConcurrentRegexp(t *testing.T) {
	like := &Like{Field: "sku", Pattern: "SKU-%"}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if !like.Regexp().MatchString("SKU-A") {
					t.Error("Expected SKU-A to match SKU-%")
					return
				}
			}
		}()
	}
	wg.Wait()

	if like.re != nil {
		t.Error("Expected Regexp not to mutate a shared Like")
	}
}
