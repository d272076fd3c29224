package service

// normalized country and region names that mark a branch when they follow a
// hyphen: "Plan International-Bangladesh"
var regionNames = wordSet(
	// regions
	"africa", "asia", "europe", "americas", "latin america", "north america", "south america",
	"central america", "caribbean", "oceania", "pacific", "middle east", "mena",
	"east africa", "west africa", "southern africa", "north africa", "central africa",
	"sub saharan africa", "horn of africa", "sahel",
	"south asia", "southeast asia", "south east asia", "east asia", "central asia",
	"asia pacific", "lac", "esa", "wca", "global", "regional",

	// countries
	"afghanistan", "albania", "algeria", "angola", "argentina", "armenia", "australia",
	"austria", "azerbaijan", "bangladesh", "belgium", "belize", "benin", "bhutan", "bolivia",
	"botswana", "brazil", "bulgaria", "burkina faso", "burundi", "cambodia", "cameroon",
	"canada", "chad", "chile", "china", "colombia", "comoros", "congo", "costa rica",
	"croatia", "cuba", "denmark", "djibouti", "dominican republic", "drc", "ecuador", "egypt",
	"el salvador", "eritrea", "eswatini", "ethiopia", "fiji", "finland", "france", "gabon",
	"gambia", "georgia", "germany", "ghana", "greece", "guatemala", "guinea", "guinea bissau",
	"guyana", "haiti", "honduras", "india", "indonesia", "iran", "iraq", "ireland", "israel",
	"italy", "jamaica", "japan", "jordan", "kazakhstan", "kenya", "korea", "kyrgyzstan",
	"laos", "lebanon", "lesotho", "liberia", "libya", "madagascar", "malawi", "malaysia",
	"mali", "mauritania", "mauritius", "mexico", "moldova", "mongolia", "morocco",
	"mozambique", "myanmar", "namibia", "nepal", "netherlands", "new zealand", "nicaragua",
	"niger", "nigeria", "norway", "pakistan", "palestine", "panama", "papua new guinea",
	"paraguay", "peru", "philippines", "poland", "portugal", "rwanda", "senegal",
	"sierra leone", "somalia", "south africa", "south sudan", "spain", "sri lanka", "sudan",
	"sweden", "switzerland", "syria", "tajikistan", "tanzania", "thailand", "timor leste",
	"togo", "tunisia", "turkey", "turkiye", "uganda", "ukraine", "uk", "united kingdom",
	"usa", "us", "united states", "uruguay", "uzbekistan", "vanuatu", "venezuela", "vietnam",
	"viet nam", "yemen", "zambia", "zimbabwe",
)
