package profile

import (
	"github.com/ilkoid/formulator/pkg/llm"
)

// Имена параметров запроса в том виде, в каком их ждёт бэкенд.
const (
	ParamTemperature         = "temperature"
	ParamMaxTokens           = "max_tokens"
	ParamMaxCompletionTokens = "max_completion_tokens"
)

// AuthKind — способ аутентификации на бэкенде.
type AuthKind int

const (
	// AuthNone — аутентификация не нужна (локальный ollama).
	AuthNone AuthKind = iota
	// AuthStaticKey — статический API ключ.
	AuthStaticKey
	// AuthBearerToken — bearer токен, который клиент получает и обновляет сам.
	AuthBearerToken
)

// String возвращает строковое представление способа аутентификации.
func (k AuthKind) String() string {
	switch k {
	case AuthStaticKey:
		return "static_key"
	case AuthBearerToken:
		return "bearer_token"
	default:
		return "none"
	}
}

// Auth описывает, как материализовать учётные данные.
//
// Для AuthBearerToken сам токен здесь не хранится: Params остаются
// чистым значением, а клиент получает токен для Scope при каждом запросе.
type Auth struct {
	Kind  AuthKind
	Key   string
	Scope string
}

// TokenLimit — ограничение длины ответа под именем, которое ждёт провайдер.
type TokenLimit struct {
	Field string
	Value int
}

// DispatchMode — как клиент отправляет запрос.
type DispatchMode int

const (
	// DispatchDirect — прямой вызов SDK провайдера.
	DispatchDirect DispatchMode = iota
	// DispatchUniversal — универсальный мультипровайдерный слой
	// с отбрасыванием неизвестных параметров.
	DispatchUniversal
)

// String возвращает строковое представление режима.
func (m DispatchMode) String() string {
	if m == DispatchDirect {
		return "direct"
	}
	return "universal"
}

// Params — EffectiveRequestParams: полностью разрешённые параметры запроса.
//
// Строится один раз функцией Resolve и дальше только читается.
// Срезы и указатели наружу отдаются копиями.
type Params struct {
	Endpoint   llm.Endpoint
	Model      string // разрешённое имя, например "ollama/llama3"
	WireModel  string // имя, которое уходит в API, без префикса маршрута
	APIBase    string
	APIVersion string
	Auth       Auth
	Dispatch   DispatchMode

	// MergeSystem — системные сообщения вклеиваются в первое user сообщение.
	MergeSystem bool
	// DropUnknown — параметры, которые бэкенд не принимает, молча отбрасываются.
	DropUnknown bool

	temperature *float64
	tokenLimits []TokenLimit
	supported   map[string]struct{}
}

// Temperature возвращает температуру и признак её наличия.
func (p Params) Temperature() (float64, bool) {
	if p.temperature == nil {
		return 0, false
	}
	return *p.temperature, true
}

// TokenLimits возвращает копию ограничений длины ответа в порядке объявления.
func (p Params) TokenLimits() []TokenLimit {
	if len(p.tokenLimits) == 0 {
		return nil
	}
	out := make([]TokenLimit, len(p.tokenLimits))
	copy(out, p.tokenLimits)
	return out
}

// TokenLimit возвращает значение лимита по имени поля.
func (p Params) TokenLimit(field string) (int, bool) {
	for _, tl := range p.tokenLimits {
		if tl.Field == field {
			return tl.Value, true
		}
	}
	return 0, false
}

// Supports сообщает, принимает ли бэкенд параметр.
//
// Без DropUnknown профиль отправляет всё, что разрешил Resolve.
func (p Params) Supports(param string) bool {
	if !p.DropUnknown {
		return true
	}
	_, ok := p.supported[param]
	return ok
}

// RequestTokenLimits возвращает лимиты в том виде, в каком они уйдут в запрос.
//
// Неподдерживаемый max_completion_tokens переводится в max_tokens,
// если бэкенд понимает только его и max_tokens ещё не задан;
// остальное неподдерживаемое отбрасывается.
func (p Params) RequestTokenLimits() []TokenLimit {
	var out []TokenLimit
	has := func(field string) bool {
		for _, tl := range out {
			if tl.Field == field {
				return true
			}
		}
		return false
	}
	for _, tl := range p.tokenLimits {
		switch {
		case p.Supports(tl.Field):
			if !has(tl.Field) {
				out = append(out, tl)
			}
		case tl.Field == ParamMaxCompletionTokens && p.Supports(ParamMaxTokens):
			if _, explicit := p.TokenLimit(ParamMaxTokens); !explicit && !has(ParamMaxTokens) {
				out = append(out, TokenLimit{Field: ParamMaxTokens, Value: tl.Value})
			}
		}
	}
	return out
}

// SamplingParams возвращает имена параметров, которые реально уйдут в запрос.
func (p Params) SamplingParams() []string {
	var names []string
	if _, ok := p.Temperature(); ok && p.Supports(ParamTemperature) {
		names = append(names, ParamTemperature)
	}
	for _, tl := range p.RequestTokenLimits() {
		names = append(names, tl.Field)
	}
	return names
}
