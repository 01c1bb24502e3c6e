package stocknames

// fallbackNames is the last-resort dictionary of frequently analyzed codes,
// used when every network source is unreachable.
var fallbackNames = map[string]string{
	"600519": "貴州茅台",
	"000001": "平安銀行",
	"300750": "寧德時代",
	"002594": "比亞迪",
	"600036": "招商銀行",
	"601318": "中國平安",
	"000858": "五糧液",
	"600276": "恆瑞醫藥",
	"601012": "隆基綠能",
	"002475": "立訊精密",
	"300059": "東方財富",
	"002415": "海康威視",
	"600900": "長江電力",
	"601166": "興業銀行",
	"600028": "中國石化",
}
