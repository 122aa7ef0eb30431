package script

import "unicode"

// formRun maps Count consecutive presentation-form code points, starting at
// First, to the same base character sequence. Shaped letters are encoded as
// runs of 1, 2 or 4 (isolated, final, initial, medial).
type formRun struct {
	First rune
	Count int
	Base  string
}

// arabicFormsB covers Arabic Presentation Forms-B (U+FE70–U+FEFC).
var arabicFormsB = []formRun{
	// Harakat: isolated and medial (tatweel-carried) forms map to the bare mark.
	{0xFE70, 2, "\u064B"}, // fathatan
	{0xFE72, 1, "\u064C"}, // dammatan
	{0xFE74, 1, "\u064D"}, // kasratan
	{0xFE76, 2, "\u064E"}, // fatha
	{0xFE78, 2, "\u064F"}, // damma
	{0xFE7A, 2, "\u0650"}, // kasra
	{0xFE7C, 2, "\u0651"}, // shadda
	{0xFE7E, 2, "\u0652"}, // sukun

	{0xFE80, 1, "ء"}, // hamza
	{0xFE81, 2, "آ"}, // alef with madda above
	{0xFE83, 2, "أ"}, // alef with hamza above
	{0xFE85, 2, "ؤ"}, // waw with hamza above
	{0xFE87, 2, "إ"}, // alef with hamza below
	{0xFE89, 4, "ئ"}, // yeh with hamza above
	{0xFE8D, 2, "ا"}, // alef
	{0xFE8F, 4, "ب"}, // beh
	{0xFE93, 2, "ة"}, // teh marbuta
	{0xFE95, 4, "ت"}, // teh
	{0xFE99, 4, "ث"}, // theh
	{0xFE9D, 4, "ج"}, // jeem
	{0xFEA1, 4, "ح"}, // hah
	{0xFEA5, 4, "خ"}, // khah
	{0xFEA9, 2, "د"}, // dal
	{0xFEAB, 2, "ذ"}, // thal
	{0xFEAD, 2, "ر"}, // reh
	{0xFEAF, 2, "ز"}, // zain
	{0xFEB1, 4, "س"}, // seen
	{0xFEB5, 4, "ش"}, // sheen
	{0xFEB9, 4, "ص"}, // sad
	{0xFEBD, 4, "ض"}, // dad
	{0xFEC1, 4, "ط"}, // tah
	{0xFEC5, 4, "ظ"}, // zah
	{0xFEC9, 4, "ع"}, // ain
	{0xFECD, 4, "غ"}, // ghain
	{0xFED1, 4, "ف"}, // feh
	{0xFED5, 4, "ق"}, // qaf
	{0xFED9, 4, "ك"}, // kaf
	{0xFEDD, 4, "ل"}, // lam
	{0xFEE1, 4, "م"}, // meem
	{0xFEE5, 4, "ن"}, // noon
	{0xFEE9, 4, "ه"}, // heh
	{0xFEED, 2, "و"}, // waw
	{0xFEEF, 2, "ى"}, // alef maksura
	{0xFEF1, 4, "ي"}, // yeh

	// Lam-alef ligatures expand to two letters.
	{0xFEF5, 2, "لآ"},
	{0xFEF7, 2, "لأ"},
	{0xFEF9, 2, "لإ"},
	{0xFEFB, 2, "لا"},
}

// arabicFormsA covers the Urdu, Persian and Sindhi letters of Arabic
// Presentation Forms-A. Ligatures in U+FC00–U+FDFF are left to the NFKC
// fallback.
var arabicFormsA = []formRun{
	{0xFB50, 2, "ٱ"}, // alef wasla
	{0xFB52, 4, "ٻ"}, // beeh
	{0xFB56, 4, "پ"}, // peh
	{0xFB5A, 4, "ڀ"}, // beheh
	{0xFB5E, 4, "ٺ"}, // tteheh
	{0xFB62, 4, "ٿ"}, // teheh
	{0xFB66, 4, "ٹ"}, // tteh
	{0xFB6A, 4, "ڤ"}, // veh
	{0xFB6E, 4, "ڦ"}, // peheh
	{0xFB72, 4, "ڄ"}, // dyeh
	{0xFB76, 4, "ڃ"}, // nyeh
	{0xFB7A, 4, "چ"}, // tcheh
	{0xFB7E, 4, "ڇ"}, // tcheheh
	{0xFB82, 2, "ڍ"}, // ddahal
	{0xFB84, 2, "ڌ"}, // dahal
	{0xFB86, 2, "ڎ"}, // dul
	{0xFB88, 2, "ڈ"}, // ddal
	{0xFB8A, 2, "ژ"}, // jeh
	{0xFB8C, 2, "ڑ"}, // rreh
	{0xFB8E, 4, "ک"}, // keheh
	{0xFB92, 4, "گ"}, // gaf
	{0xFB96, 4, "ڳ"}, // gueh
	{0xFB9A, 4, "ڱ"}, // ngoeh
	{0xFB9E, 2, "ں"}, // noon ghunna
	{0xFBA0, 4, "ڻ"}, // rnoon
	{0xFBA4, 2, "ۀ"}, // heh with yeh above
	{0xFBA6, 4, "ہ"}, // heh goal
	{0xFBAA, 4, "ھ"}, // heh doachashmee
	{0xFBAE, 2, "ے"}, // yeh barree
	{0xFBB0, 2, "ۓ"}, // yeh barree with hamza above
	{0xFBD3, 4, "ڭ"}, // ng
	{0xFBD7, 2, "ۇ"}, // u
	{0xFBD9, 2, "ۆ"}, // oe
	{0xFBDB, 2, "ۈ"}, // yu
	{0xFBDE, 2, "ۋ"}, // ve
	{0xFBE0, 2, "ۅ"}, // kirghiz oe
	{0xFBE2, 2, "ۉ"}, // kirghiz yu
	{0xFBE4, 4, "ې"}, // e
	{0xFBE8, 2, "ى"}, // uighur kazakh kirghiz alef maksura
	{0xFBFC, 4, "ی"}, // farsi yeh
}

// digits maps Arabic-Indic and Extended Arabic-Indic (Urdu/Persian) digits and
// the Arabic numeric separators to their ASCII equivalents.
var digits = map[rune]rune{
	'٠': '0', '١': '1', '٢': '2', '٣': '3', '٤': '4',
	'٥': '5', '٦': '6', '٧': '7', '٨': '8', '٩': '9',

	'۰': '0', '۱': '1', '۲': '2', '۳': '3', '۴': '4',
	'۵': '5', '۶': '6', '۷': '7', '۸': '8', '۹': '9',

	'٪': '%', // arabic percent sign
	'٫': '.', // arabic decimal separator
	'٬': ',', // arabic thousands separator
}

// tatweel is the kashida elongation mark; it carries no letter.
const tatweel = 'ـ'

// invisibleSeparators lists bidi controls and zero-width characters that are
// treated as whitespace. unicode.IsSpace covers the visible separators.
var invisibleSeparators = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x061C, Hi: 0x061C, Stride: 1}, // arabic letter mark
		{Lo: 0x180E, Hi: 0x180E, Stride: 1}, // mongolian vowel separator
		{Lo: 0x200B, Hi: 0x200F, Stride: 1}, // zwsp, zwnj, zwj, lrm, rlm
		{Lo: 0x202A, Hi: 0x202E, Stride: 1}, // embeddings and overrides
		{Lo: 0x2060, Hi: 0x2064, Stride: 1}, // word joiner, invisible operators
		{Lo: 0x2066, Hi: 0x2069, Stride: 1}, // isolates
		{Lo: 0xFEFF, Hi: 0xFEFF, Stride: 1}, // byte order mark
	},
}

// presentationRanges bounds the NFKC fallback for forms missing from the tables.
var presentationRanges = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0xFB50, Hi: 0xFDFF, Stride: 1},
		{Lo: 0xFE70, Hi: 0xFEFF, Stride: 1},
	},
}

// arabicBlocks bounds NFC composition. It covers the base Arabic block and
// its supplements, including the combining marks, which carry the Inherited
// script property rather than Arabic.
var arabicBlocks = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x0600, Hi: 0x06FF, Stride: 1},
		{Lo: 0x0750, Hi: 0x077F, Stride: 1},
		{Lo: 0x0870, Hi: 0x08FF, Stride: 1},
	},
}

var presentationForms = buildFormTable(arabicFormsA, arabicFormsB)

func buildFormTable(tables ...[]formRun) map[rune]string {
	m := make(map[rune]string)
	for _, table := range tables {
		for _, run := range table {
			for i := 0; i < run.Count; i++ {
				m[run.First+rune(i)] = run.Base
			}
		}
	}
	return m
}
