package conversation

import (
	"fmt"
	"strings"

	"github.com/okhlopkov/salon-assistant/internal/schedule"
)

// Commands recognized at any step, in Ukrainian and English.
var (
	startCommands  = []string{"розпочати запис", "запис", "start", "/start", "book"}
	cancelCommands = []string{"відмінити запис", "відмінити", "cancel", "/cancel"}
	backCommands   = []string{"назад", "back"}
)

func matchesCommand(input string, commands []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(input))
	for _, cmd := range commands {
		if normalized == cmd {
			return true
		}
	}
	return false
}

func greetingReply(salonName string) Reply {
	return Reply{
		Text:    fmt.Sprintf("Вітаємо у %s! Щоб записатися, натисніть «Розпочати запис».", salonName),
		Buttons: []string{"Розпочати запис"},
	}
}

func askNameReply() Reply {
	return Reply{Text: "Як до вас звертатися?"}
}

func askNameAgainReply() Reply {
	return Reply{Text: "Будь ласка, напишіть ваше ім'я."}
}

func askProcedureReply(name string, procedures []string) Reply {
	return Reply{
		Text:    fmt.Sprintf("%s, оберіть процедуру:", name),
		Buttons: append([]string(nil), procedures...),
	}
}

func unknownProcedureReply(procedures []string) Reply {
	return Reply{
		Text:    "Такої процедури немає. Оберіть одну зі списку:",
		Buttons: append([]string(nil), procedures...),
	}
}

func askDateReply() Reply {
	return Reply{Text: "На яку дату вас записати? Напишіть дату у форматі ДД-ММ-РРРР або день тижня, наприклад «середа»."}
}

func unknownDateReply() Reply {
	return Reply{Text: "Не вдалося розпізнати дату. Напишіть її у форматі ДД-ММ-РРРР або назвіть день тижня."}
}

func noSlotsReply(date string) Reply {
	return Reply{Text: fmt.Sprintf("На %s вільних годин немає. Оберіть, будь ласка, іншу дату.", date)}
}

func askSlotReply(date string, free []schedule.Slot) Reply {
	return Reply{
		Text:    fmt.Sprintf("Вільні години на %s:", date),
		Buttons: slotButtons(free),
	}
}

func slotUnavailableReply(free []schedule.Slot) Reply {
	return Reply{
		Text:    "Ця година недоступна. Оберіть одну з вільних:",
		Buttons: slotButtons(free),
	}
}

func slotTakenReply(free []schedule.Slot) Reply {
	return Reply{
		Text:    "На жаль, цю годину щойно зайняли. Оберіть іншу:",
		Buttons: slotButtons(free),
	}
}

func intervalSlotsReply(free []schedule.Slot) Reply {
	if len(free) == 0 {
		return Reply{Text: "У цей проміжок вільних годин немає. Оберіть інший час."}
	}
	return Reply{
		Text:    "У цей проміжок вільні такі години:",
		Buttons: slotButtons(free),
	}
}

func confirmedReply(name, procedure, date string, slot schedule.Slot) Reply {
	return Reply{Text: fmt.Sprintf("%s, вас записано на %s %s о %s. Чекаємо на вас! 💇", name, procedure, date, slot)}
}

func transientErrorReply() Reply {
	return Reply{Text: "Сталася помилка, спробуйте ще раз за мить."}
}

func cancelledReply() Reply {
	return Reply{Text: "Ваш запис скасовано."}
}

func nothingToCancelReply() Reply {
	return Reply{Text: "У вас немає активних записів."}
}

func slotButtons(free []schedule.Slot) []string {
	buttons := make([]string, 0, len(free))
	for _, s := range free {
		buttons = append(buttons, string(s))
	}
	return buttons
}
