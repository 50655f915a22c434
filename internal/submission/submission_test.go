package submission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatWireContract(t *testing.T) {
	got := Format(Booking{
		Name:     "山田太郎",
		Phone:    "090-1234-5678",
		Category: "フェイシャル",
		Menu:     "ベーシックフェイシャル",
		Slot:     Slot{Date: "2025-01-10", Time: "14:00"},
	})

	want := "お名前：山田太郎\n" +
		"電話番号：090-1234-5678\n" +
		"来店回数：\n" +
		"メニュー：フェイシャル > ベーシックフェイシャル\n" +
		"希望日時：\n" +
		"2025年01月10日 14:00\n" +
		"メッセージ："
	assert.Equal(t, want, got)
}

func TestFormatOptionalLines(t *testing.T) {
	got := Format(Booking{
		Name:       "佐藤花子",
		Phone:      "080-0000-1111",
		VisitCount: "2回目",
		Gender:     "女性",
		Coupon:     "初回10%オフ",
		Category:   "ヘア",
		Menu:       "カラー",
		Submenu:    "ロング",
		Options:    []string{"トリートメント", "ヘッドスパ"},
		Slot:       Slot{Date: "2025-03-01", Time: "10:30"},
		Message:    "よろしくお願いします",
		Custom:     []Field{{Label: "ご要望", Value: "静かめで"}, {Label: "空欄", Value: ""}},
		Alternates: []Slot{{Date: "2025-03-02", Time: "11:00"}, {}, {Date: "2025-03-09", Time: "09:00"}},
	})

	want := "お名前：佐藤花子\n" +
		"電話番号：080-0000-1111\n" +
		"来店回数：2回目\n" +
		"メニュー：ヘア > カラー > ロング, トリートメント, ヘッドスパ\n" +
		"希望日時：\n" +
		"2025年03月01日 10:30\n" +
		"メッセージ：よろしくお願いします\n" +
		"性別：女性\n" +
		"クーポン：初回10%オフ\n" +
		"ご要望：静かめで\n" +
		"第2希望：2025年03月02日 11:00"
	assert.Equal(t, want, got)
}

func TestMenuPath(t *testing.T) {
	assert.Equal(t, "カット", MenuPath(Booking{Menu: "カット"}))
	assert.Equal(t, "ヘア > カット, 眉カット", MenuPath(Booking{Category: "ヘア", Menu: "カット", Options: []string{"眉カット"}}))
}

func TestFormatDateTime(t *testing.T) {
	assert.Equal(t, "2025年01月10日 14:00", FormatDateTime("2025-01-10", "14:00"))
	assert.Equal(t, "2025年12月01日 09:00", FormatDateTime("2025-12-01", "09:00"))
	assert.Equal(t, "来週 14:00", FormatDateTime("来週", "14:00"))
	assert.Equal(t, "", FormatDateTime("", ""))
}
