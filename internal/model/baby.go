package model

import (
	"fmt"
	"strings"
	"time"
)

// Gender は赤ちゃんの性別。
type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

// DefaultBabyColor はフォームの色フィールドの初期値。
const DefaultBabyColor = "#BEB6D9"

// Baby は赤ちゃんのプロフィールを表す。
// BirthDateは日付のみを保持し、時刻成分はUTCの0時に揃える。
type Baby struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Gender    Gender    `json:"gender"`
	Color     string    `json:"color"`
	PhotoURL  string    `json:"photoUrl"`
	BirthDate time.Time `json:"birthDate"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// GetID はリスト表示での同一性判定に使うIDを返す。
func (b *Baby) GetID() string { return b.ID }

// BabyPatch は赤ちゃんの部分更新内容を表す。
type BabyPatch struct {
	Name      *string
	Gender    *Gender
	Color     *string
	PhotoURL  *string
	BirthDate *time.Time
}

// Age は生年月日から基準日までの経過期間を表す。
// 1歳未満の場合はTotalMonths/Weeksも使用する。
type Age struct {
	Years       int
	Months      int
	Days        int
	TotalMonths int
	Weeks       int
}

// AgeAt は基準日nowにおける年齢を計算する。
// 未来の生年月日はゼロ値を返す。
func AgeAt(birth, now time.Time) Age {
	birth = dateOnly(birth)
	now = dateOnly(now)
	if now.Before(birth) {
		return Age{}
	}

	months := (now.Year()-birth.Year())*12 + int(now.Month()) - int(birth.Month())
	if now.Day() < birth.Day() {
		months--
	}
	// 月末生まれは対象月の末日に丸めて残り日数を数える
	anchor := addMonthsClamped(birth, months)
	days := int(now.Sub(anchor).Hours() / 24)

	age := Age{Years: months / 12, Months: months % 12, Days: days}
	if age.Years < 1 {
		age.TotalMonths = months
		age.Weeks = days / 7
		age.Days = days % 7
	}
	return age
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m := t.Year(), int(t.Month())-1+months
	y += m / 12
	m = m%12 + 1
	last := time.Date(y, time.Month(m)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	d := t.Day()
	if d > last {
		d = last
	}
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

// Label は年齢を英語の表示用文字列にする。
func (a Age) Label() string {
	return a.LabelFunc(func(key string) string { return englishAgeWords[key] })
}

// LabelFunc は単位語を翻訳関数wordから引いて年齢の表示用文字列を組み立てる。
// キーは year/years/month/months/week/weeks/day/days/old。
func (a Age) LabelFunc(word func(key string) string) string {
	return strings.TrimSpace(a.label(word))
}

func (a Age) label(word func(key string) string) string {
	unit := func(n int, one, many string) string {
		if n == 1 {
			return fmt.Sprintf("%d %s", n, word(one))
		}
		return fmt.Sprintf("%d %s", n, word(many))
	}
	old := word("old")

	switch {
	case a.Years >= 1 && a.Months > 0:
		return fmt.Sprintf("%s, %s %s", unit(a.Years, "year", "years"), unit(a.Months, "month", "months"), old)
	case a.Years >= 1:
		return fmt.Sprintf("%s %s", unit(a.Years, "year", "years"), old)
	case a.TotalMonths > 0 && a.Weeks > 0:
		return fmt.Sprintf("%s, %s %s", unit(a.TotalMonths, "month", "months"), unit(a.Weeks, "week", "weeks"), old)
	case a.TotalMonths > 0:
		return fmt.Sprintf("%s %s", unit(a.TotalMonths, "month", "months"), old)
	case a.Weeks > 0 && a.Days > 0:
		return fmt.Sprintf("%s, %s %s", unit(a.Weeks, "week", "weeks"), unit(a.Days, "day", "days"), old)
	case a.Weeks > 0:
		return fmt.Sprintf("%s %s", unit(a.Weeks, "week", "weeks"), old)
	default:
		return fmt.Sprintf("%s %s", unit(a.Days, "day", "days"), old)
	}
}

var englishAgeWords = map[string]string{
	"year": "year", "years": "years",
	"month": "month", "months": "months",
	"week": "week", "weeks": "weeks",
	"day": "day", "days": "days",
	"old": "old",
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
