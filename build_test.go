// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nestbox

import (
	"reflect"
	"testing"
)

func TestBuildInsertSingleRow(t *testing.T) {
	query, params, err := buildInsert("nests", []Params{
		{"nest_name": "wren", "notes": "under the eaves"},
	}, false, "nest_id")
	if err != nil {
		t.Fatalf("buildInsert failed: %v", err)
	}
	want := "INSERT INTO `nests` ( `nest_name`, `notes` ) VALUES ( :nest_name, :notes )"
	if query != want {
		t.Errorf("got query %q, want %q", query, want)
	}
	wantParams := Params{"nest_name": "wren", "notes": "under the eaves"}
	if !reflect.DeepEqual(params, wantParams) {
		t.Errorf("got params %v, want %v", params, wantParams)
	}
}

func TestBuildInsertMultiRow(t *testing.T) {
	query, params, err := buildInsert("eggs", []Params{
		{"label": "first", "weight": 10},
		{"label": "second", "weight": 12},
	}, false, "egg_id")
	if err != nil {
		t.Fatalf("buildInsert failed: %v", err)
	}
	want := "INSERT INTO `eggs` ( `label`, `weight` ) VALUES " +
		"( :label_0, :weight_0 ), ( :label_1, :weight_1 )"
	if query != want {
		t.Errorf("got query %q, want %q", query, want)
	}
	if got, want := len(params), 4; got != want {
		t.Fatalf("got %d params, want %d", got, want)
	}
	if got, want := params["label_1"], "second"; got != want {
		t.Errorf("got label_1 %v, want %v", got, want)
	}
}

func TestBuildInsertUpsertSingleRow(t *testing.T) {
	query, _, err := buildInsert("nests", []Params{
		{"nest_id": 3, "nest_name": "robin"},
	}, true, "nest_id")
	if err != nil {
		t.Fatalf("buildInsert failed: %v", err)
	}
	want := "INSERT INTO `nests` ( `nest_id`, `nest_name` ) VALUES ( :nest_id, :nest_name )" +
		" ON DUPLICATE KEY UPDATE `nest_name` = :nest_name"
	if query != want {
		t.Errorf("got query %q, want %q", query, want)
	}
}

func TestBuildInsertUpsertMultiRow(t *testing.T) {
	query, _, err := buildInsert("nests", []Params{
		{"nest_id": 1, "nest_name": "wren"},
		{"nest_id": 2, "nest_name": "robin"},
	}, true, "nest_id")
	if err != nil {
		t.Fatalf("buildInsert failed: %v", err)
	}
	want := "INSERT INTO `nests` ( `nest_id`, `nest_name` ) VALUES " +
		"( :nest_id_0, :nest_name_0 ), ( :nest_id_1, :nest_name_1 )" +
		" ON DUPLICATE KEY UPDATE `nest_name` = VALUES(`nest_name`)"
	if query != want {
		t.Errorf("got query %q, want %q", query, want)
	}
}

func TestBuildInsertUpsertOnlyKeyColumn(t *testing.T) {
	query, _, err := buildInsert("nests", []Params{{"nest_id": 1}}, true, "nest_id")
	if err != nil {
		t.Fatalf("buildInsert failed: %v", err)
	}
	want := "INSERT INTO `nests` ( `nest_id` ) VALUES ( :nest_id )"
	if query != want {
		t.Errorf("got query %q, want %q", query, want)
	}
}

func TestBuildInsertRowMismatch(t *testing.T) {
	_, _, err := buildInsert("eggs", []Params{
		{"label": "first", "weight": 10},
		{"label": "second"},
	}, false, "")
	if err == nil {
		t.Error("expected error for mismatched insert rows")
	}
	_, _, err = buildInsert("eggs", []Params{
		{"label": "first", "weight": 10},
		{"label": "second", "color": "blue"},
	}, false, "")
	if err == nil {
		t.Error("expected error for differing insert columns")
	}
}

func TestBuildInsertEmpty(t *testing.T) {
	if _, _, err := buildInsert("eggs", nil, false, ""); err == nil {
		t.Error("expected error for empty row set")
	}
	if _, _, err := buildInsert("eggs", []Params{{}}, false, ""); err == nil {
		t.Error("expected error for empty row")
	}
}

func TestBuildWhereConjunctions(t *testing.T) {
	testCases := []struct {
		conjunction string
		want        string
	}{
		{"AND", " WHERE `label` = :label AND `weight` = :weight"},
		{"or", " WHERE `label` = :label OR `weight` = :weight"},
		{"", " WHERE `label` = :label AND `weight` = :weight"},
		{"NAND", " WHERE `label` = :label AND `weight` = :weight"},
	}
	where := Params{"label": "first", "weight": 10}
	for _, tc := range testCases {
		clause, params := buildWhere(where, tc.conjunction, "")
		if clause != tc.want {
			t.Errorf("conjunction %q: got %q, want %q", tc.conjunction, clause, tc.want)
		}
		if got, want := len(params), 2; got != want {
			t.Errorf("conjunction %q: got %d params, want %d", tc.conjunction, got, want)
		}
	}
}

func TestBuildWhereEmpty(t *testing.T) {
	clause, params := buildWhere(nil, "AND", "")
	if clause != "" || params != nil {
		t.Errorf("got (%q, %v), want empty clause and nil params", clause, params)
	}
}

func TestBuildUpdate(t *testing.T) {
	query, params, err := buildUpdate("eggs",
		Params{"weight": 15},
		Params{"label": "first"}, "AND")
	if err != nil {
		t.Fatalf("buildUpdate failed: %v", err)
	}
	want := "UPDATE `eggs` SET `weight` = :weight WHERE `label` = :label"
	if query != want {
		t.Errorf("got query %q, want %q", query, want)
	}
	wantParams := Params{"weight": 15, "label": "first"}
	if !reflect.DeepEqual(params, wantParams) {
		t.Errorf("got params %v, want %v", params, wantParams)
	}
}

func TestBuildUpdateCollidingWhere(t *testing.T) {
	query, params, err := buildUpdate("eggs",
		Params{"weight": 15, "label": "renamed"},
		Params{"label": "first"}, "AND")
	if err != nil {
		t.Fatalf("buildUpdate failed: %v", err)
	}
	want := "UPDATE `eggs` SET `label` = :label, `weight` = :weight" +
		" WHERE `label` = :label_w"
	if query != want {
		t.Errorf("got query %q, want %q", query, want)
	}
	if got, want := params["label"], "renamed"; got != want {
		t.Errorf("got set binding %v, want %v", got, want)
	}
	if got, want := params["label_w"], "first"; got != want {
		t.Errorf("got where binding %v, want %v", got, want)
	}
}

func TestBuildUpdateNoColumns(t *testing.T) {
	if _, _, err := buildUpdate("eggs", nil, Params{"label": "x"}, "AND"); err == nil {
		t.Error("expected error for update without columns")
	}
}

func TestBuildDelete(t *testing.T) {
	query, params := buildDelete("eggs", Params{"label": "first"}, "AND")
	want := "DELETE FROM `eggs` WHERE `label` = :label"
	if query != want {
		t.Errorf("got query %q, want %q", query, want)
	}
	if got, want := params["label"], "first"; got != want {
		t.Errorf("got param %v, want %v", got, want)
	}
}

func TestBuildSelect(t *testing.T) {
	query, _ := buildSelect("nests", Params{"nest_name": "wren"}, "AND")
	want := "SELECT * FROM `nests` WHERE `nest_name` = :nest_name"
	if query != want {
		t.Errorf("got query %q, want %q", query, want)
	}

	query, params := buildSelect("nests", nil, "")
	want = "SELECT * FROM `nests`"
	if query != want {
		t.Errorf("got query %q, want %q", query, want)
	}
	if params != nil {
		t.Errorf("got params %v, want nil", params)
	}
}

func TestQuoteIdent(t *testing.T) {
	if got, want := quoteIdent("nest_name"), "`nest_name`"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := quoteIdent("ne`st"), "`nest`"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
