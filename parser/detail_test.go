package parser

import (
	"errors"
	"fmt"
	"testing"
)

func detailPage(houseCode, subtitle, floor, elevator string) string {
	return fmt.Sprintf(`
<html><body>
<div class="house_code">房源编码：%s</div>
<p class="content__subtitle">%s</p>
<div id="info">
  <ul><li>基本信息</li></ul>
  <ul>
    <li>1</li><li>2</li><li>3</li><li>4</li><li>5</li><li>6</li><li>7</li>
    <li>%s</li>
    <li>%s</li>
  </ul>
</div>
</body></html>`, houseCode, subtitle, floor, elevator)
}

func TestDetail(t *testing.T) {
	body := detailPage("GZ2593190382", "房源维护于2023-05-12", "楼层：低楼层/32", "电梯：有")

	fields, err := Detail([]byte(body), "GZ")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if fields.Withdrawn {
		t.Fatalf("unexpected withdrawn flag")
	}
	if fields.HouseID != "2593190382" {
		t.Fatalf("HouseID = %q, want 2593190382", fields.HouseID)
	}
	if fields.InfoDate != "2023-05-12" {
		t.Fatalf("InfoDate = %q, want 2023-05-12", fields.InfoDate)
	}
	if fields.HouseFloor != "低楼层" {
		t.Fatalf("HouseFloor = %q, want 低楼层", fields.HouseFloor)
	}
	if fields.BuildFloor != 32 {
		t.Fatalf("BuildFloor = %d, want 32", fields.BuildFloor)
	}
	if fields.Elevator != "有" {
		t.Fatalf("Elevator = %q, want 有", fields.Elevator)
	}
}

func TestDetailWrongCity(t *testing.T) {
	body := detailPage("SH1234567890", "房源维护于2023-05-12", "楼层：低楼层/32", "电梯：有")

	_, err := Detail([]byte(body), "GZ")
	var invalid InvalidError
	if !errors.As(err, &invalid) || invalid.Reason != ReasonWrongCity {
		t.Fatalf("error = %v, want InvalidError(%s)", err, ReasonWrongCity)
	}
}

func TestDetailWithdrawn(t *testing.T) {
	body := `
<html><body>
<div class="offline">房源已下架</div>
<div class="house_code">房源编码：GZ2593190382</div>
</body></html>`

	fields, err := Detail([]byte(body), "GZ")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if !fields.Withdrawn {
		t.Fatalf("expected withdrawn flag")
	}
	if fields.HouseID != "2593190382" {
		t.Fatalf("HouseID = %q, want 2593190382", fields.HouseID)
	}
}

func TestDetailWithdrawnWithoutCode(t *testing.T) {
	body := `<html><body><div class="offline">房源已下架</div></body></html>`

	fields, err := Detail([]byte(body), "GZ")
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if !fields.Withdrawn || fields.HouseID != "" {
		t.Fatalf("fields = %+v, want withdrawn with empty id", fields)
	}
}

func TestDetailParseErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing house code", body: detailPage("", "房源维护于2023-05-12", "楼层：低楼层/32", "电梯：有")},
		{name: "missing info date", body: detailPage("GZ2593190382", "最近维护", "楼层：低楼层/32", "电梯：有")},
		{name: "malformed floor", body: detailPage("GZ2593190382", "房源维护于2023-05-12", "楼层不详", "电梯：有")},
		{name: "malformed elevator", body: detailPage("GZ2593190382", "房源维护于2023-05-12", "楼层：低楼层/32", "电梯不详")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Detail([]byte(tt.body), "GZ")
			var parseErr ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("error = %v, want ParseError", err)
			}
		})
	}
}
